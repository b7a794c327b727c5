//go:build !unix

package platform

import (
	"os"
	"runtime"
)

// Host reports what the Go runtime knows about the platform.
func Host() (Info, error) {
	node, _ := os.Hostname()
	return Info{
		System:    runtime.GOOS,
		Node:      node,
		Machine:   runtime.GOARCH,
		Processor: runtime.GOARCH,
	}, nil
}
