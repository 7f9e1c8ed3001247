// Package config provides configuration management for continuous.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (CONTINUOUS_*)
// 3. Project config (.continuous.yaml in cwd, or --config / CONTINUOUS_CONFIG)
// 4. Home config (~/.config/continuous/config.yaml)
// 5. Defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all loop configuration.
type Config struct {
	// Prompt is the task handed to the agent every iteration.
	Prompt string `yaml:"prompt" json:"prompt"`

	// MaxRuns caps successful iterations (0 = unlimited).
	MaxRuns int `yaml:"max_runs" json:"max_runs"`

	// MaxCost caps cumulative spend in USD (0 = unlimited).
	MaxCost float64 `yaml:"max_cost" json:"max_cost"`

	// MaxDuration caps wall-clock time, e.g. "2h" (empty = unlimited).
	MaxDuration string `yaml:"max_duration" json:"max_duration"`

	// Owner and Repo select the GitHub repository; detected from the origin
	// remote when empty.
	Owner string `yaml:"owner" json:"owner"`
	Repo  string `yaml:"repo" json:"repo"`

	// MergeStrategy is squash, merge or rebase.
	MergeStrategy string `yaml:"merge_strategy" json:"merge_strategy"`

	NotesFile           string `yaml:"notes_file" json:"notes_file"`
	CompletionSignal    string `yaml:"completion_signal" json:"completion_signal"`
	CompletionThreshold int    `yaml:"completion_threshold" json:"completion_threshold"`

	// StatusFile, when set, receives a JSON snapshot after every event.
	StatusFile string `yaml:"status_file" json:"status_file"`

	DryRun  bool `yaml:"dry_run" json:"dry_run"`
	Verbose bool `yaml:"verbose" json:"verbose"`
	TUI     bool `yaml:"tui" json:"tui"`

	Agent    AgentConfig    `yaml:"agent" json:"agent"`
	Timeouts TimeoutsConfig `yaml:"timeouts" json:"timeouts"`
}

// AgentConfig holds agent CLI settings.
type AgentConfig struct {
	// Command is the agent executable. Default: "claude".
	Command string `yaml:"command" json:"command"`
	// Model is passed as --model when set.
	Model string `yaml:"model" json:"model"`
}

// TimeoutsConfig holds duration strings in <int>h|m|s form.
type TimeoutsConfig struct {
	// Agent bounds one agent invocation. Default: 10m.
	Agent string `yaml:"agent" json:"agent"`
	// Command bounds one git or gh call. Default: 30s.
	Command string `yaml:"command" json:"command"`
	// Poll bounds the wait for pull request checks. Default: 30m.
	Poll string `yaml:"poll" json:"poll"`
	// PollInterval is the fixed delay between check queries. Default: 10s.
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// Default config values.
const (
	DefaultMergeStrategy       = "squash"
	DefaultNotesFile           = "SHARED_TASK_NOTES.md"
	DefaultCompletionSignal    = "CONTINUOUS_CLAUDE_PROJECT_COMPLETE"
	DefaultCompletionThreshold = 3
	DefaultAgentCommand        = "claude"
)

// EnvConfigPath names the environment variable that points at a project
// config file.
const EnvConfigPath = "CONTINUOUS_CONFIG"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MergeStrategy:       DefaultMergeStrategy,
		NotesFile:           DefaultNotesFile,
		CompletionSignal:    DefaultCompletionSignal,
		CompletionThreshold: DefaultCompletionThreshold,
		Agent: AgentConfig{
			Command: DefaultAgentCommand,
		},
		Timeouts: TimeoutsConfig{
			Agent:        "10m",
			Command:      "30s",
			Poll:         "30m",
			PollInterval: "10s",
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
//
// explicitPath (from --config) replaces the project config lookup and must
// exist. flags, if non-nil, is applied last.
func Load(explicitPath string, flags func(*Config)) (*Config, error) {
	cfg := Default()

	homeConfig, err := loadFromPath(homeConfigPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	path, required := projectConfigPath(explicitPath)
	projectConfig, err := loadFromPath(path)
	if err != nil && (required || !errors.Is(err, fs.ErrNotExist)) {
		return nil, err
	}
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if flags != nil {
		flags(cfg)
	}
	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "continuous", "config.yaml")
}

// projectConfigPath returns the project config path and whether it was named
// explicitly.
func projectConfigPath(explicit string) (string, bool) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, true
	}
	if override := strings.TrimSpace(os.Getenv(EnvConfigPath)); override != "" {
		return override, true
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	return filepath.Join(cwd, ".continuous.yaml"), false
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("CONTINUOUS_PROMPT"); v != "" {
		cfg.Prompt = v
	}
	if v := os.Getenv("CONTINUOUS_MAX_RUNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONTINUOUS_MAX_RUNS: %w", err)
		}
		cfg.MaxRuns = n
	}
	if v := os.Getenv("CONTINUOUS_MAX_COST"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CONTINUOUS_MAX_COST: %w", err)
		}
		cfg.MaxCost = f
	}
	if v := os.Getenv("CONTINUOUS_MAX_DURATION"); v != "" {
		cfg.MaxDuration = v
	}
	if v := os.Getenv("CONTINUOUS_OWNER"); v != "" {
		cfg.Owner = v
	}
	if v := os.Getenv("CONTINUOUS_REPO"); v != "" {
		cfg.Repo = v
	}
	if v := os.Getenv("CONTINUOUS_MERGE_STRATEGY"); v != "" {
		cfg.MergeStrategy = v
	}
	if v := os.Getenv("CONTINUOUS_NOTES_FILE"); v != "" {
		cfg.NotesFile = v
	}
	if v := os.Getenv("CONTINUOUS_COMPLETION_SIGNAL"); v != "" {
		cfg.CompletionSignal = v
	}
	if v := os.Getenv("CONTINUOUS_COMPLETION_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONTINUOUS_COMPLETION_THRESHOLD: %w", err)
		}
		cfg.CompletionThreshold = n
	}
	if v := os.Getenv("CONTINUOUS_STATUS_FILE"); v != "" {
		cfg.StatusFile = v
	}
	if envBool("CONTINUOUS_DRY_RUN") {
		cfg.DryRun = true
	}
	if envBool("CONTINUOUS_VERBOSE") {
		cfg.Verbose = true
	}
	if v := os.Getenv("CONTINUOUS_AGENT_COMMAND"); v != "" {
		cfg.Agent.Command = v
	}
	if v := os.Getenv("CONTINUOUS_AGENT_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	return nil
}

func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1"
}

// mergeStr overwrites dst with src when src is non-empty.
func mergeStr(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// mergeInt overwrites dst with src when src is non-zero.
func mergeInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

// merge merges src into dst, with src values taking precedence. Booleans
// can only be switched on by a file.
func merge(dst, src *Config) *Config {
	mergeStr(&dst.Prompt, src.Prompt)
	mergeInt(&dst.MaxRuns, src.MaxRuns)
	if src.MaxCost != 0 {
		dst.MaxCost = src.MaxCost
	}
	mergeStr(&dst.MaxDuration, src.MaxDuration)
	mergeStr(&dst.Owner, src.Owner)
	mergeStr(&dst.Repo, src.Repo)
	mergeStr(&dst.MergeStrategy, src.MergeStrategy)
	mergeStr(&dst.NotesFile, src.NotesFile)
	mergeStr(&dst.CompletionSignal, src.CompletionSignal)
	mergeInt(&dst.CompletionThreshold, src.CompletionThreshold)
	mergeStr(&dst.StatusFile, src.StatusFile)
	if src.DryRun {
		dst.DryRun = true
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.TUI {
		dst.TUI = true
	}

	mergeStr(&dst.Agent.Command, src.Agent.Command)
	mergeStr(&dst.Agent.Model, src.Agent.Model)

	mergeStr(&dst.Timeouts.Agent, src.Timeouts.Agent)
	mergeStr(&dst.Timeouts.Command, src.Timeouts.Command)
	mergeStr(&dst.Timeouts.Poll, src.Timeouts.Poll)
	mergeStr(&dst.Timeouts.PollInterval, src.Timeouts.PollInterval)
	return dst
}

var durationRE = regexp.MustCompile(`^(\d+)([hms])$`)

// ParseDuration parses "<int>h", "<int>m" or "<int>s". The empty string is
// zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := durationRE.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q: use a whole number followed by h, m or s (e.g. 2h, 30m, 45s)", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	unit := map[string]time.Duration{"h": time.Hour, "m": time.Minute, "s": time.Second}[m[2]]
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("invalid duration %q: too large", s)
	}
	return time.Duration(n) * unit, nil
}

// Durations are the parsed forms of the duration settings.
type Durations struct {
	Max          time.Duration
	Agent        time.Duration
	Command      time.Duration
	Poll         time.Duration
	PollInterval time.Duration
}

// ParseDurations parses every duration setting.
func (c *Config) ParseDurations() (Durations, error) {
	var d Durations
	fields := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"max duration", c.MaxDuration, &d.Max},
		{"agent timeout", c.Timeouts.Agent, &d.Agent},
		{"command timeout", c.Timeouts.Command, &d.Command},
		{"poll timeout", c.Timeouts.Poll, &d.Poll},
		{"poll interval", c.Timeouts.PollInterval, &d.PollInterval},
	}
	for _, f := range fields {
		v, err := ParseDuration(f.src)
		if err != nil {
			return Durations{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return d, nil
}

var mergeStrategies = map[string]bool{"squash": true, "merge": true, "rebase": true}

// Validate checks the configuration for values the loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Prompt) == "" {
		errs = append(errs, errors.New("prompt is required"))
	}
	if c.MaxRuns < 0 {
		errs = append(errs, fmt.Errorf("max runs must be >= 0, got %d", c.MaxRuns))
	}
	if c.MaxCost < 0 {
		errs = append(errs, fmt.Errorf("max cost must be >= 0, got %g", c.MaxCost))
	}
	if c.CompletionThreshold < 0 {
		errs = append(errs, fmt.Errorf("completion threshold must be >= 0, got %d", c.CompletionThreshold))
	}
	if !mergeStrategies[strings.ToLower(c.MergeStrategy)] {
		errs = append(errs, fmt.Errorf("merge strategy must be squash, merge or rebase, got %q", c.MergeStrategy))
	}
	if (c.Owner == "") != (c.Repo == "") {
		errs = append(errs, errors.New("owner and repo must be set together"))
	}
	if _, err := c.ParseDurations(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
