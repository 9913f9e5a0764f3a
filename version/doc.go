// Package version reports build information for the /info endpoint and the
// startup log.
//
// Version, commit and build time are set at link time and fall back to the
// VCS stamp recorded by the Go toolchain:
//
//	go build -ldflags "-X github.com/kbukum/service-template/version.Version=1.0.0"
package version
