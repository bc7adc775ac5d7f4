// Package common provides shared utilities for levfolio
package common

// Version information set at build time via ldflags.
var (
	version   = "dev"
	build     = "unknown"
	gitCommit = "unknown"
)

// GetVersion returns the application version.
func GetVersion() string {
	return version
}

// GetBuild returns the build timestamp.
func GetBuild() string {
	return build
}

// GetGitCommit returns the git commit hash.
func GetGitCommit() string {
	return gitCommit
}
