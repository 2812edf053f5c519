package version

// Those variables are replaced during the build with the actual values
var (
	version = "unversioned"
	commit  = "unknown"
)

// MajorVersion is used to distinguish breaking changes in the admin tokens format.
// Bump it only when previously issued tokens must stop being accepted.
const MajorVersion = 1

func Version() string {
	return version
}

func Commit() string {
	return commit
}
