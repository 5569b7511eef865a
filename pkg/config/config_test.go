package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bastiangx/texserve/pkg/citation"
	"github.com/bastiangx/texserve/pkg/prefix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	cfg, err := InitConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
max_limit = 50
user_completions = "snippets.yaml"

[completion]
enabled_groups = { tikz = false, minted = true }

[citation]
format = "\\cite{${cite}}"

[packages]
enabled = false
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Server.MaxLimit)
	assert.Equal(t, 2, cfg.Server.MinPrefix, "unset keys keep defaults")
	assert.Equal(t, map[string]bool{"tikz": false, "minted": true}, cfg.Completion.EnabledGroups)
	assert.Equal(t, `\cite{${cite}}`, cfg.Citation.Format)
	assert.False(t, cfg.Packages.Enabled)
	assert.Equal(t, prefix.DefaultPackagePattern, cfg.Packages.Regex)
}

func TestLoadConfigPartialRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
max_limit = "lots"
min_prefix = 3

[citation]
enabled = false
format = 42

[cli]
default_scopes = ["text.tex.latex", "meta.math"]
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.MaxLimit, cfg.Server.MaxLimit)
	assert.Equal(t, 3, cfg.Server.MinPrefix)
	assert.False(t, cfg.Citation.Enabled)
	assert.Equal(t, citation.DefaultFormat, cfg.Citation.Format)
	assert.Equal(t, []string{"text.tex.latex", "meta.math"}, cfg.CLI.DefaultScopes)
}

func TestLoadConfigUnparseable(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("[server\nmax_limit = "), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigWithPriorityCustom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nmin_prefix = 4\n"), 0o644))

	cfg, used, err := LoadConfigWithPriority(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, 4, cfg.Server.MinPrefix)
}

func TestEngineConversion(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Server.UserCompletions = "snippets.json"
	cfg.Server.MaxLimit = 10
	cfg.Completion.EnabledGroups = map[string]bool{"tikz": false}
	cfg.Citation.Enabled = false

	ec := cfg.Engine(dir)
	assert.Equal(t, filepath.Join(dir, "snippets.json"), ec.UserCompletionsPath)
	assert.Equal(t, 10, ec.MaxResults)
	assert.Equal(t, map[string]bool{"tikz": false}, ec.EnabledGroups)
	assert.False(t, ec.CitationsEnabled)
	assert.True(t, ec.PackagesEnabled)
	assert.Equal(t, prefix.DefaultPatterns(), ec.Patterns)

	ec.EnabledGroups["minted"] = false
	assert.NotContains(t, cfg.Completion.EnabledGroups, "minted", "conversion copies the group map")

	abs := filepath.Join(dir, "abs.json")
	cfg.Server.UserCompletions = abs
	assert.Equal(t, abs, cfg.Engine("/elsewhere").UserCompletionsPath)
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	limit := 12
	user := "~/tex/completions.json"
	require.NoError(t, cfg.Update(path, &limit, nil, &user))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Server.MaxLimit)
	assert.Equal(t, user, loaded.Server.UserCompletions)
	assert.Equal(t, 2, loaded.Server.MinPrefix)
}
