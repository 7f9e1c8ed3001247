package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at fresh temp dirs and clears
// every CONTINUOUS_* variable.
func isolate(t *testing.T) (home, cwd string) {
	t.Helper()
	home = t.TempDir()
	cwd = t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(cwd)
	for _, k := range []string{
		EnvConfigPath, "CONTINUOUS_PROMPT", "CONTINUOUS_MAX_RUNS", "CONTINUOUS_MAX_COST",
		"CONTINUOUS_MAX_DURATION", "CONTINUOUS_OWNER", "CONTINUOUS_REPO",
		"CONTINUOUS_MERGE_STRATEGY", "CONTINUOUS_NOTES_FILE", "CONTINUOUS_COMPLETION_SIGNAL",
		"CONTINUOUS_COMPLETION_THRESHOLD", "CONTINUOUS_STATUS_FILE", "CONTINUOUS_DRY_RUN",
		"CONTINUOUS_VERBOSE", "CONTINUOUS_AGENT_COMMAND", "CONTINUOUS_AGENT_MODEL",
	} {
		t.Setenv(k, "")
	}
	return home, cwd
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "squash", cfg.MergeStrategy)
	assert.Equal(t, "SHARED_TASK_NOTES.md", cfg.NotesFile)
	assert.Equal(t, "CONTINUOUS_CLAUDE_PROJECT_COMPLETE", cfg.CompletionSignal)
	assert.Equal(t, 3, cfg.CompletionThreshold)
	assert.Equal(t, "claude", cfg.Agent.Command)

	d, err := cfg.ParseDurations()
	require.NoError(t, err)
	assert.Equal(t, Durations{
		Agent:        10 * time.Minute,
		Command:      30 * time.Second,
		Poll:         30 * time.Minute,
		PollInterval: 10 * time.Second,
	}, d)
}

func TestLoad_Precedence(t *testing.T) {
	home, cwd := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "continuous", "config.yaml"), `
max_runs: 5
merge_strategy: rebase
notes_file: HOME_NOTES.md
agent:
  model: home-model
`)
	writeFile(t, filepath.Join(cwd, ".continuous.yaml"), `
max_runs: 8
max_cost: 12.5
timeouts:
  poll: 45m
verbose: true
`)
	t.Setenv("CONTINUOUS_MAX_RUNS", "9")
	t.Setenv("CONTINUOUS_AGENT_MODEL", "env-model")

	cfg, err := Load("", func(c *Config) { c.MergeStrategy = "merge" })
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.MaxRuns, "env beats project")
	assert.Equal(t, 12.5, cfg.MaxCost, "project value kept")
	assert.Equal(t, "merge", cfg.MergeStrategy, "flag beats home")
	assert.Equal(t, "HOME_NOTES.md", cfg.NotesFile)
	assert.Equal(t, "env-model", cfg.Agent.Model)
	assert.Equal(t, "45m", cfg.Timeouts.Poll)
	assert.Equal(t, "10s", cfg.Timeouts.PollInterval, "default survives partial file")
	assert.True(t, cfg.Verbose)
}

func TestLoad_NoFiles(t *testing.T) {
	isolate(t)
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitPath(t *testing.T) {
	_, cwd := isolate(t)
	writeFile(t, filepath.Join(cwd, ".continuous.yaml"), "max_runs: 2\n")
	other := filepath.Join(t.TempDir(), "ci.yaml")
	writeFile(t, other, "max_runs: 7\nprompt: from file\n")

	cfg, err := Load(other, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxRuns, "explicit path replaces .continuous.yaml")
	assert.Equal(t, "from file", cfg.Prompt)

	_, err = Load(filepath.Join(cwd, "missing.yaml"), nil)
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoad_EnvConfigPath(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "env.yaml")
	writeFile(t, p, "owner: acme\nrepo: widgets\n")
	t.Setenv(EnvConfigPath, p)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Owner)
	assert.Equal(t, "widgets", cfg.Repo)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		_, cwd := isolate(t)
		writeFile(t, filepath.Join(cwd, ".continuous.yaml"), "max_runs: [\n")
		_, err := Load("", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ".continuous.yaml")
	})

	t.Run("bad env integer", func(t *testing.T) {
		isolate(t)
		t.Setenv("CONTINUOUS_MAX_RUNS", "lots")
		_, err := Load("", nil)
		assert.ErrorContains(t, err, "CONTINUOUS_MAX_RUNS")
	})

	t.Run("bad env float", func(t *testing.T) {
		isolate(t)
		t.Setenv("CONTINUOUS_MAX_COST", "$5")
		_, err := Load("", nil)
		assert.ErrorContains(t, err, "CONTINUOUS_MAX_COST")
	})
}

func TestApplyEnv_Booleans(t *testing.T) {
	isolate(t)
	t.Setenv("CONTINUOUS_DRY_RUN", "1")
	t.Setenv("CONTINUOUS_VERBOSE", "yes")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
	assert.False(t, cfg.Verbose, "only true and 1 enable a flag")
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"2h", 2 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"45s", 45 * time.Second, false},
		{" 90m ", 90 * time.Minute, false},
		{"0s", 0, false},
		{"1h30m", 0, true},
		{"1.5h", 0, true},
		{"10", 0, true},
		{"10d", 0, true},
		{"-5m", 0, true},
		{"h", 0, true},
		{"2562047h", 2562047 * time.Hour, false},
		{"2562048h", 0, true},
		{"9999999999h", 0, true},
		{"9223372036s", 9223372036 * time.Second, false},
		{"9223372037s", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Prompt = "do the thing"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing prompt", func(c *Config) { c.Prompt = "  " }, "prompt is required"},
		{"negative runs", func(c *Config) { c.MaxRuns = -1 }, "max runs"},
		{"negative cost", func(c *Config) { c.MaxCost = -0.5 }, "max cost"},
		{"negative threshold", func(c *Config) { c.CompletionThreshold = -2 }, "completion threshold"},
		{"unknown strategy", func(c *Config) { c.MergeStrategy = "octopus" }, "merge strategy"},
		{"owner without repo", func(c *Config) { c.Owner = "acme" }, "owner and repo"},
		{"bad duration", func(c *Config) { c.MaxDuration = "forever" }, "max duration"},
		{"bad poll interval", func(c *Config) { c.Timeouts.PollInterval = "5ms" }, "poll interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}

	c := valid()
	c.MergeStrategy = "Rebase"
	assert.NoError(t, c.Validate(), "strategy is case-insensitive")
}
