// Command rangecat reads byte ranges from HTTP, S3 and local objects.
//
// Usage:
//
//	rangecat stat https://example.com/data/chr22.bgen
//	rangecat cat s3://bucket/chr22.bgen --offset 4096 --length 1024 > block.bin
//	RANGECAT_S3_PRESET=minio rangecat cat s3://bucket/key --decompress zstd --length 812
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
