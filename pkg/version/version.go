package version

import "fmt"

// Current defines the application version.
// It defaults to "dev" but is overwritten by the Makefile using -ldflags.
var Current = "dev"

// Commit is the source revision, injected via ldflags.
var Commit = "none"

const AppName = "spendscope"

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("%s %s (%s)", AppName, Current, Commit)
}
