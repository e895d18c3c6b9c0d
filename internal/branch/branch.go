// Package branch provides helpers to work with git branch references and
// to order release branches by their semantic version.
package branch

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/simplesurance/mergebot/internal/gitprovider"
)

const (
	// HeadsPrefix is the namespace of branch references.
	HeadsPrefix = "refs/heads/"
	// ReleasePrefix is the prefix of release branch references.
	// The remaining part of the reference name is the version.
	ReleasePrefix = HeadsPrefix + "release/"
)

// Branch is a git branch reference.
type Branch struct {
	Ref gitprovider.Ref
	// Version is the version parsed from a release branch name.
	// It is nil if the branch is not a release branch or the version
	// can not be parsed.
	Version *semver.Version
}

// New creates a Branch from a reference.
// If the reference is a release branch, the part after ReleasePrefix is
// parsed as semantic version. Versions are parsed leniently, missing minor
// and patch numbers and leading zeros are accepted.
func New(ref gitprovider.Ref) *Branch {
	b := Branch{Ref: ref}

	if IsRelease(ref.Name) {
		v, err := semver.NewVersion(strings.TrimPrefix(ref.Name, ReleasePrefix))
		if err == nil {
			b.Version = v
		}
	}

	return &b
}

// Name returns the canonical name of the branch.
func (b *Branch) Name() string {
	return b.Ref.Name
}

func (b *Branch) String() string {
	return b.Ref.Name
}

// IsRelease returns true if name starts with ReleasePrefix.
func IsRelease(name string) bool {
	return strings.HasPrefix(name, ReleasePrefix)
}

// IsEqual returns true if both branch names are byte-wise equal.
func IsEqual(name, other string) bool {
	return name == other
}

// IsReleaseOrDefault returns true if name is a release branch or equal to
// defaultBranch.
func IsReleaseOrDefault(name, defaultBranch string) bool {
	return IsRelease(name) || IsEqual(name, defaultBranch)
}

// Canonize prepends HeadsPrefix to name if it does not start with it.
func Canonize(name string) string {
	if strings.HasPrefix(name, HeadsPrefix) {
		return name
	}

	return HeadsPrefix + name
}

// ShortName returns name without the HeadsPrefix.
func ShortName(name string) string {
	return strings.TrimPrefix(name, HeadsPrefix)
}
