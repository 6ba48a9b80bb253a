package promptstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/conductor/internal/promptstore"
)

func writePrompt(t *testing.T, dir string, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAll_SortsAndSkipsUnparseable(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "0002-second.md", "---\nnumber: 2\ntitle: Second\nstatus: pending\n---\nbody\n")
	writePrompt(t, dir, "0001-first.md", "---\nnumber: 1\ntitle: First\nstatus: done\n---\nbody\n")
	writePrompt(t, dir, "0003-broken.md", "not frontmatter at all")

	prompts, err := promptstore.LoadAll(dir)
	require.NoError(t, err)

	require.Len(t, prompts, 2)
	assert.Equal(t, 1, prompts[0].Number)
	assert.Equal(t, 2, prompts[1].Number)
}

func TestLoadAll_RejectsFilenameNumberMismatch(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "0005-mismatch.md", "---\nnumber: 9\ntitle: X\nstatus: pending\n---\nbody\n")

	prompts, err := promptstore.LoadAll(dir)
	require.NoError(t, err)
	assert.Empty(t, prompts, "mismatched filename/frontmatter number should be skipped")
}

func TestPickNext_PicksLowestEligible(t *testing.T) {
	prompts := []promptstore.Prompt{
		{Number: 1, Status: promptstore.StatusPending},
		{Number: 2, Status: promptstore.StatusPending, Dependencies: []int{1}},
		{Number: 3, Status: promptstore.StatusDone},
	}

	result := promptstore.PickNext(prompts, nil)
	require.NotNil(t, result.Prompt)
	assert.Equal(t, 1, result.Prompt.Number)
}

func TestPickNext_SkipsUnsatisfiedDependencies(t *testing.T) {
	// #1 is pending (not done), so #2's dependency is unsatisfied; #1
	// itself is excluded, leaving nothing pickable.
	prompts := []promptstore.Prompt{
		{Number: 1, Status: promptstore.StatusPending},
		{Number: 2, Status: promptstore.StatusPending, Dependencies: []int{1}},
	}

	result := promptstore.PickNext(prompts, map[int]bool{1: true})
	assert.Nil(t, result.Prompt)
}

func TestPickNext_ExcludesGivenNumbers(t *testing.T) {
	prompts := []promptstore.Prompt{
		{Number: 1, Status: promptstore.StatusPending},
		{Number: 2, Status: promptstore.StatusPending},
	}

	result := promptstore.PickNext(prompts, map[int]bool{1: true})
	require.NotNil(t, result.Prompt)
	assert.Equal(t, 2, result.Prompt.Number)
}

func TestPickNext_NoneReturnsReason(t *testing.T) {
	prompts := []promptstore.Prompt{
		{Number: 1, Status: promptstore.StatusDone},
	}

	result := promptstore.PickNext(prompts, nil)
	assert.Nil(t, result.Prompt)
	assert.NotEmpty(t, result.Reason)
}

func TestMarkInProgress_PreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := writePrompt(t, dir, "0001-task.md",
		"---\nnumber: 1\ntitle: Task\nstatus: pending\ncustom_field: keepme\n---\nBody.\n")

	require.NoError(t, promptstore.MarkInProgress(path))

	prompts, err := promptstore.LoadAll(dir)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, promptstore.StatusInProgress, prompts[0].Status)

	found := false
	for _, e := range prompts[0].Extra {
		if e.Key == "custom_field" {
			found = true
			assert.Equal(t, "keepme", e.Value)
		}
	}
	assert.True(t, found, "custom_field should survive the rewrite")
}

func TestGetByNumber(t *testing.T) {
	prompts := []promptstore.Prompt{
		{Number: 1}, {Number: 3}, {Number: 7},
	}

	p, ok := promptstore.GetByNumber(prompts, 3)
	require.True(t, ok)
	assert.Equal(t, 3, p.Number)

	_, ok = promptstore.GetByNumber(prompts, 4)
	assert.False(t, ok)
}
