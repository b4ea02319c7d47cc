package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pithecene-io/rangefile/rangefile"
)

type catFlags struct {
	offset     int64
	length     int64
	chunk      int64
	decompress string
}

func (a *app) catCmd() *cobra.Command {
	var fl catFlags
	cmd := &cobra.Command{
		Use:   "cat LOCATOR",
		Short: "Write a byte range of an object to stdout",
		Long: `cat seeks to --offset and copies --length bytes (everything to the end
of the object when negative) to stdout.

With --decompress, exactly --length bytes are read as one compressed
block (zlib, gzip or zstd) and the inflated bytes are written instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCat(cmd, args[0], fl)
		},
	}
	cmd.Flags().Int64Var(&fl.offset, "offset", 0, "byte offset to start reading at")
	cmd.Flags().Int64Var(&fl.length, "length", -1, "number of bytes to read, negative for all")
	cmd.Flags().Int64Var(&fl.chunk, "chunk", 64<<10, "bytes requested per read")
	cmd.Flags().StringVar(&fl.decompress, "decompress", "", "treat the range as a compressed block (zlib, gzip, zstd)")
	return cmd
}

func (a *app) runCat(cmd *cobra.Command, locator string, fl catFlags) error {
	if fl.chunk <= 0 {
		return fmt.Errorf("--chunk must be positive, got %d", fl.chunk)
	}
	ctx := cmd.Context()

	f, err := a.open(ctx, locator)
	if err != nil {
		return err
	}
	if _, err := f.Seek(fl.offset, io.SeekStart); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if fl.decompress != "" {
		if fl.length <= 0 {
			return errors.New("--decompress requires a positive --length")
		}
		d, err := rangefile.DecompressorByName(fl.decompress)
		if err != nil {
			return err
		}
		data, err := f.ReadBlock(ctx, fl.length, d)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
		return a.finish(cmd, f)
	}

	remaining := fl.length
	for remaining != 0 {
		n := fl.chunk
		if remaining > 0 {
			n = min(n, remaining)
		}
		data, err := f.ReadN(ctx, n)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			break
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
		if remaining > 0 {
			remaining -= int64(len(data))
		}
	}
	return a.finish(cmd, f)
}
