package branch

import (
	"sort"
	"strings"
)

// Comparator orders release branches by their semantic version precedence.
// The default branch is always ordered after all release branches.
type Comparator struct {
	defaultBranch string
}

func NewComparator(defaultBranch string) *Comparator {
	return &Comparator{defaultBranch: defaultBranch}
}

// Compare returns -1 if a is ordered before b, 1 if it is ordered after b
// and 0 if both have the same precedence.
// Nil branches are ordered first. Branches without a version are ordered
// before branches with a version, between each other they are ordered by
// name.
func (c *Comparator) Compare(a, b *Branch) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	aIsDefault := IsEqual(c.defaultBranch, a.Name())
	bIsDefault := IsEqual(c.defaultBranch, b.Name())

	switch {
	case aIsDefault && bIsDefault:
		return 0
	case aIsDefault:
		return 1
	case bIsDefault:
		return -1
	}

	switch {
	case a.Version == nil && b.Version == nil:
		return strings.Compare(a.Name(), b.Name())
	case a.Version == nil:
		return -1
	case b.Version == nil:
		return 1
	}

	return a.Version.Compare(b.Version)
}

// Sort sorts branches in ascending order.
func (c *Comparator) Sort(branches []*Branch) {
	sort.SliceStable(branches, func(i, j int) bool {
		return c.Compare(branches[i], branches[j]) < 0
	})
}
