// SPDX-License-Identifier: MIT
//
// Package build carries the metadata embedded into the spectrograph binary at
// link time: application name, build timestamp, Git commit and semantic
// version. Populate it with linker flags, for example:
//
//	go build -ldflags "-X spectrograph/pkg/build.buildName=spectrograph \
//	  -X spectrograph/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run without the flags; Initialize then reports what is
// missing and the defaults below stay in place.
package build

import "fmt"

// DefaultName is used for the CLI and logs when no name was linked in.
const DefaultName = "spectrograph"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        DefaultName,
		Description: "Live audio spectrogram with now-playing metadata",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. Returns an error naming the first missing flag;
// the fields that were set are copied regardless.
func Initialize() error {
	var missing string
	set := func(dst *string, val, flag string) {
		if val == "" {
			if missing == "" {
				missing = flag
			}
			return
		}
		*dst = val
	}

	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	if missing != "" {
		return fmt.Errorf("%s is required", missing)
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String renders the build information as a single version line.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
