// Package version holds build metadata set with -ldflags -X.
package version

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the version line printed by -version.
func String() string {
	return "speedtrap " + Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
