// Package buildinfo exposes version metadata stamped into release binaries.
package buildinfo

// Version is overridden at build time:
//
//	-ldflags "-X berth/internal/support/buildinfo.Version=v1.2.3"
var Version = "dev"
