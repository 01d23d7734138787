package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/accounts"
	"github.com/tally-dev/tally/internal/config"
)

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runTally(t, "init", dir, "--name", "Test Owner", "--no-git")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized tally project")

	expectedDirs := []string{
		"accounts",
		"rules",
		"transactions",
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range expectedDirs {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runTally(t, "init", dir, "--name", "Jane Doe", "--no-git")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", cfg.Owner.Name)
	assert.Equal(t, "rules/categorization-rules.yaml", cfg.Classify.RulesFile)
	assert.False(t, cfg.Git.AutoCommit, "--no-git turns off auto-commit")

	rules, err := os.ReadFile(filepath.Join(dir, "rules", "categorization-rules.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "rules: []\n", string(rules))
}

func TestInit_EmptyAccounts(t *testing.T) {
	dir := t.TempDir()
	_, err := runTally(t, "init", dir, "--name", "Test Owner", "--no-git")
	require.NoError(t, err)

	svc, err := accounts.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, svc.All())

	_, err = os.Stat(accounts.Path(dir))
	assert.NoError(t, err, "accounts.csv is written even when empty")
}

func TestInit_Gitignore(t *testing.T) {
	dir := t.TempDir()
	_, err := runTally(t, "init", dir, "--name", "Test Owner", "--no-git")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	for _, pattern := range []string{".tally/", "exports/"} {
		assert.Contains(t, string(data), pattern)
	}
}

func TestInit_RequiresName(t *testing.T) {
	_, err := runTally(t, "init", t.TempDir(), "--no-git")
	require.Error(t, err, "init without --name should fail")
}

func TestInit_RefusesExistingProject(t *testing.T) {
	dir := t.TempDir()
	_, err := runTally(t, "init", dir, "--name", "Test Owner", "--no-git")
	require.NoError(t, err)

	_, err = runTally(t, "init", dir, "--name", "Other", "--no-git")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already contains")
}

func TestInit_GitRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	_, err := runTally(t, "init", dir, "--name", "Test Owner")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git should exist")

	log := exec.Command("git", "log", "--format=%s|%an <%ae>", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "init: Initialize Test Owner")
	assert.Contains(t, string(out), "Tally <tally@localhost>")
}

func TestCommands_OutsideProject(t *testing.T) {
	_, err := runTally(t, "--repo", t.TempDir(), "classify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tally init")
}

func TestAccounts_AddAndList(t *testing.T) {
	dir := newProject(t)

	_, err := runTally(t, "--repo", dir, "accounts", "add", "savings", "--bank", "Chase", "--iban", "CH93 0076 2011 6238 5295 7")
	require.NoError(t, err)

	_, err = runTally(t, "--repo", dir, "accounts", "add", "savings")
	assert.Error(t, err, "duplicate account")

	_, err = runTally(t, "--repo", dir, "accounts", "add", "../escape")
	assert.Error(t, err, "unsafe account id")

	out, err := runTally(t, "--repo", dir, "accounts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "checking")
	assert.Contains(t, out, "savings")
	assert.Contains(t, out, "CH93 0076 2011 6238 5295 7")
}
