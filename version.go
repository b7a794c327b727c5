// Package sysagent provides the version information for sysagent.
package sysagent

// Version is the current version of sysagent.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
