package main

import (
	"github.com/spf13/cobra"

	"github.com/pithecene-io/rangefile/rangefile"
)

// statResult is the JSON document printed per locator.
type statResult struct {
	Locator string `json:"locator"`
	Name    string `json:"name"`
	// Size is omitted when the backend did not report one.
	Size *int64 `json:"size,omitempty"`
}

func (a *app) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat LOCATOR...",
		Short: "Print the name and size of objects as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, locator := range args {
				f, err := a.open(cmd.Context(), locator)
				if err != nil {
					return err
				}
				res := statResult{Locator: locator, Name: f.Name()}
				if size := f.Size(); size != rangefile.UnknownSize {
					res.Size = &size
				}
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
