// Package version reports build metadata for wgadmin.
//
// Values are set at build time using ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/wgadmin/version.Version=1.0.0 \
//	  -X github.com/go-i2p/wgadmin/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When GitCommit is not set, the VCS revision stamped by the Go toolchain
// is used if present.
package version

import "runtime/debug"

// Version is the software version.
var Version = "dev"

// GitCommit is the short commit hash.
var GitCommit = ""

// BuildTime is when the binary was built, in RFC 3339.
var BuildTime = ""

// shortCommit is the length git uses for abbreviated hashes.
const shortCommit = 7

// Full returns the version with commit and build time when known.
func Full() string {
	return format(Version, commit(), BuildTime)
}

func format(version, commit, built string) string {
	v := version
	if commit != "" {
		v += "-" + commit
	}
	if built != "" {
		v += " (" + built + ")"
	}
	return v
}

func commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return vcsRevision(info)
}

func vcsRevision(info *debug.BuildInfo) string {
	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > shortCommit {
		rev = rev[:shortCommit]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}
