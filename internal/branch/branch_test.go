package branch

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergebot/internal/gitprovider"
)

func newBranch(name string) *Branch {
	return New(gitprovider.Ref{Name: name})
}

func branchNames(branches []*Branch) []string {
	result := make([]string, 0, len(branches))
	for _, b := range branches {
		result = append(result, b.Name())
	}

	return result
}

func TestNewParsesVersionOfReleaseBranch(t *testing.T) {
	b := newBranch("refs/heads/release/1.0")
	require.NotNil(t, b.Version)
	assert.Equal(t, uint64(1), b.Version.Major())
	assert.Equal(t, uint64(0), b.Version.Minor())
}

func TestNewWithoutVersion(t *testing.T) {
	assert.Nil(t, newBranch("refs/heads/main").Version)
	assert.Nil(t, newBranch("refs/heads/release/next").Version)
	assert.Equal(t, "refs/heads/release/next", newBranch("refs/heads/release/next").Name())
}

func TestIsRelease(t *testing.T) {
	assert.True(t, IsRelease("refs/heads/release/1.0"))
	assert.True(t, IsRelease("refs/heads/release/2020.1.19"))

	assert.False(t, IsRelease("refs/heads/main"))
	assert.False(t, IsRelease("release/1.0"))
	assert.False(t, IsRelease("refs/heads/feature/release/1.0"))
	assert.False(t, IsRelease("refs/tags/release/1.0"))
}

func TestIsEqual(t *testing.T) {
	assert.True(t, IsEqual("refs/heads/main", "refs/heads/main"))
	assert.False(t, IsEqual("refs/heads/main", "refs/heads/Main"))
}

func TestIsReleaseOrDefault(t *testing.T) {
	assert.True(t, IsReleaseOrDefault("refs/heads/release/1.0", "refs/heads/main"))
	assert.True(t, IsReleaseOrDefault("refs/heads/main", "refs/heads/main"))
	assert.False(t, IsReleaseOrDefault("refs/heads/develop", "refs/heads/main"))
}

func TestCanonize(t *testing.T) {
	assert.Equal(t, "refs/heads/foo", Canonize("foo"))
	assert.Equal(t, "refs/heads/foo", Canonize("refs/heads/foo"))
	assert.Equal(t, Canonize("foo"), Canonize(Canonize("foo")))
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "release/1.0", ShortName("refs/heads/release/1.0"))
	assert.Equal(t, "main", ShortName("main"))
}

func TestSortReleaseAndDefaultBranches(t *testing.T) {
	for _, defaultBranch := range []string{"refs/heads/master", "refs/heads/develop"} {
		t.Run(defaultBranch, func(t *testing.T) {
			branches := []*Branch{
				newBranch(defaultBranch),
				newBranch("refs/heads/release/1.0"),
				newBranch("refs/heads/release/0.0"),
				newBranch("refs/heads/release/2.0"),
				newBranch("refs/heads/release/1.1"),
			}

			NewComparator(defaultBranch).Sort(branches)

			assert.Equal(t, []string{
				"refs/heads/release/0.0",
				"refs/heads/release/1.0",
				"refs/heads/release/1.1",
				"refs/heads/release/2.0",
				defaultBranch,
			}, branchNames(branches))
		})
	}
}

func TestSortReleaseAndDefaultBranchesUsingYearMonthDay(t *testing.T) {
	for _, defaultBranch := range []string{"refs/heads/master", "refs/heads/develop"} {
		t.Run(defaultBranch, func(t *testing.T) {
			branches := []*Branch{
				newBranch(defaultBranch),
				newBranch("refs/heads/release/2020.1.19"),
				newBranch("refs/heads/release/2020.01.20"),
				newBranch("refs/heads/release/2020.1.21"),
				newBranch("refs/heads/release/2020.2.21"),
			}

			NewComparator(defaultBranch).Sort(branches)

			assert.Equal(t, []string{
				"refs/heads/release/2020.1.19",
				"refs/heads/release/2020.01.20",
				"refs/heads/release/2020.1.21",
				"refs/heads/release/2020.2.21",
				defaultBranch,
			}, branchNames(branches))
		})
	}
}

func TestSortIsIndependentOfInputOrder(t *testing.T) {
	const defaultBranch = "refs/heads/main"
	expected := []string{
		"refs/heads/release/0.9",
		"refs/heads/release/1.0.0-beta",
		"refs/heads/release/1.0",
		"refs/heads/release/1.10",
		"refs/heads/release/2.0",
		defaultBranch,
	}

	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 20; i++ {
		branches := make([]*Branch, 0, len(expected))
		for _, name := range expected {
			branches = append(branches, newBranch(name))
		}

		rnd.Shuffle(len(branches), func(i, j int) {
			branches[i], branches[j] = branches[j], branches[i]
		})

		NewComparator(defaultBranch).Sort(branches)
		require.Equal(t, expected, branchNames(branches))
	}
}

func TestCompareVersionlessBranches(t *testing.T) {
	c := NewComparator("refs/heads/main")

	assert.Equal(t, -1, c.Compare(newBranch("refs/heads/release/next"), newBranch("refs/heads/release/1.0")))
	assert.Equal(t, 1, c.Compare(newBranch("refs/heads/release/1.0"), newBranch("refs/heads/release/next")))
	assert.Equal(t, -1, c.Compare(newBranch("refs/heads/release/a"), newBranch("refs/heads/release/b")))
	assert.Equal(t, -1, c.Compare(newBranch("refs/heads/release/next"), newBranch("refs/heads/main")))
	assert.Equal(t, 1, c.Compare(newBranch("refs/heads/main"), newBranch("refs/heads/release/next")))
	assert.Equal(t, -1, c.Compare(nil, newBranch("refs/heads/main")))
}
