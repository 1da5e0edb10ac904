// Package buildinfo carries the build identity stamped in with -ldflags:
//
//	-ldflags "-X trt/internal/buildinfo.Version=v0.3.0 -X trt/internal/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

// Version is set at build time via -ldflags.
var Version = "dev"

// Commit is set at build time via -ldflags.
var Commit = "unknown"

// Date is set at build time via -ldflags.
var Date = "unknown"

// Short returns a compact build identifier for window titles and logs.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	return "dev"
}

// Long returns every stamped field, for the console.
func Long() string {
	return "trt " + Version + " (commit " + Commit + ", built " + Date + ")"
}
