package commands_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/rules"
)

func TestRules_List(t *testing.T) {
	dir := newProject(t)

	out, err := runTally(t, "--repo", dir, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "subs")
	assert.Contains(t, out, "Subscriptions")
	assert.Contains(t, out, `IF amount gt 0 THEN Income`)
}

func TestRules_Check(t *testing.T) {
	dir := newProject(t)

	out, err := runTally(t, "--repo", dir, "rules", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rules OK (2 enabled)")

	broken := `rules:
  - id: a
    category: A
    when:
      field: amount
      op: contains
      value: "5"
  - id: b
    category: B
    when:
      field: description
      op: matches
      value: "(unclosed"
  - id: c
    category: C
    when:
      field: description
      op: equals
      value: ok
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules", "categorization-rules.yaml"), []byte(broken), 0o644))

	out, err = runTally(t, "--repo", dir, "rules", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 rules are invalid")
	assert.Contains(t, out, "rule #1")
	assert.Contains(t, out, "rule #2")
}

func TestRules_DisableEnable(t *testing.T) {
	dir := newProject(t)
	seedLedger(t, dir)
	path := filepath.Join(dir, "rules", "categorization-rules.yaml")

	out, err := runTally(t, "--repo", dir, "rules", "disable", "subs")
	require.NoError(t, err)
	assert.Contains(t, out, "Disabled rule subs")

	set, err := rules.Load(path)
	require.NoError(t, err)
	r, ok := set.Get("subs")
	require.True(t, ok)
	assert.False(t, r.Enabled)

	_, err = runTally(t, "--repo", dir, "classify")
	require.NoError(t, err)
	assert.Empty(t, readLedger(t, dir)["t1"].Category, "disabled rule no longer matches")

	_, err = runTally(t, "--repo", dir, "rules", "enable", "subs")
	require.NoError(t, err)
	set, err = rules.Load(path)
	require.NoError(t, err)
	assert.Len(t, set.Ordered(), 2)

	_, err = runTally(t, "--repo", dir, "rules", "disable", "nope")
	assert.ErrorIs(t, err, rules.ErrRuleNotFound)
}
