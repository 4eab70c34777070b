package paychan

import "fmt"

// Semantic version of the module. Suffix marks builds that are not a tagged
// release.
const (
	Maj    = 0
	Min    = 1
	Fix    = 0
	Suffix = "-dev"
)

var version = fmt.Sprintf("v%d.%d.%d%s", Maj, Min, Fix, Suffix)

// GitCommit is set by build flags.
var GitCommit = ""

// Version returns the release followed by the commit, if known.
func Version() string {
	if GitCommit == "" {
		return version
	}
	return version + " " + GitCommit
}

// UserAgent identifies this client in requests sent to ledger nodes.
func UserAgent() string {
	return "paychan/" + version
}
