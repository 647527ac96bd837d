// Package versionutil extracts and compares the versions tools report on
// the command line.
package versionutil

import (
	"regexp"

	"golang.org/x/mod/semver"
)

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?)`)

// Extract returns the first version found in output in "v" form, or "" when
// there is none. "k3s version v1.30.4+k3s1 (e05e2d5f)" yields "v1.30.4+k3s1".
func Extract(output string) string {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return ""
	}
	v := "v" + m[1]
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// AtLeast reports whether have is minimum or newer. Invalid versions never
// satisfy.
func AtLeast(have, minimum string) bool {
	if !semver.IsValid(have) || !semver.IsValid(minimum) {
		return false
	}
	return semver.Compare(have, minimum) >= 0
}

// Same reports whether two versions are identical including build metadata,
// which K3s uses to number its own releases ("+k3s1" vs "+k3s2").
func Same(have, want string) bool {
	if !semver.IsValid(have) || !semver.IsValid(want) {
		return false
	}
	return semver.Compare(have, want) == 0 && semver.Build(have) == semver.Build(want)
}
