package cmd

import (
	"fmt"
	"runtime"
)

// runVersion prints version and build information.
func runVersion() {
	fmt.Printf("docket %s\n", Version)
	fmt.Printf("  go: %s\n", runtime.Version())
	fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
