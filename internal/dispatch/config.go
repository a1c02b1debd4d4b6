package dispatch

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Phase selects which prompt template frames the user request.
type Phase string

const (
	PhasePlan      Phase = "plan"
	PhaseImplement Phase = "implement"
)

// ErrConfig marks validation failures: bad phase, missing files. These are
// fatal and reported immediately, with no retry and no output files written.
var ErrConfig = errors.New("invalid dispatcher configuration")

const (
	DefaultModel   = "gemini-2.5-pro"
	DefaultTimeout = 1800 * time.Second
	DefaultCLI     = "gemini"
)

type Config struct {
	Phase       Phase
	RequestFile string
	RulesDir    string // optional; *.md files are aggregated into the prompt
	Model       string
	OutputDir   string

	// Backend selection forwarded to the wrapped CLI as env vars.
	UseVertex     bool
	UseCodeAssist bool

	// ProxyCommand, when set, is either a proxy binary to launch (health
	// polled before the run) or a .js preload script injected via
	// NODE_OPTIONS.
	ProxyCommand string
	ProxyPort    int

	Interactive bool // interactive approval instead of auto-approve
	ActionLog   bool // telemetry capture + action summary

	Timeout time.Duration
	CLI     string // external CLI binary

	// Tunables loaded from an optional YAML file.
	QuotaPatterns []string
	FatalPatterns []string
}

// WithDefaults returns a copy with defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CLI == "" {
		cfg.CLI = DefaultCLI
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.ProxyPort <= 0 {
		cfg.ProxyPort = 8080
	}
	return cfg
}

// Validate checks the inputs that must exist before any file is written.
func (c *Config) Validate() error {
	if c.Phase != PhasePlan && c.Phase != PhaseImplement {
		return fmt.Errorf("%w: unknown phase %q (want %q or %q)",
			ErrConfig, c.Phase, PhasePlan, PhaseImplement)
	}

	if c.RequestFile == "" {
		return fmt.Errorf("%w: request file path is required", ErrConfig)
	}
	if _, err := os.Stat(c.RequestFile); err != nil {
		return fmt.Errorf("%w: request file %s does not exist", ErrConfig, c.RequestFile)
	}

	if c.RulesDir != "" {
		if info, err := os.Stat(c.RulesDir); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: rules directory %s does not exist", ErrConfig, c.RulesDir)
		}
	}

	if c.ProxyCommand != "" {
		if _, err := os.Stat(c.ProxyCommand); err != nil {
			return fmt.Errorf("%w: proxy command %s does not exist", ErrConfig, c.ProxyCommand)
		}
	}

	return nil
}

// Tunables are the optional YAML-file overrides for run behavior.
type Tunables struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	QuotaPatterns  []string `yaml:"quota_patterns"`
	FatalPatterns  []string `yaml:"fatal_patterns"`
}

// LoadTunables reads the YAML tunables file. A missing path returns zero
// tunables without error.
func LoadTunables(path string) (Tunables, error) {
	var t Tunables
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tunables: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tunables: %w", err)
	}
	return t, nil
}

// Apply folds tunables into the config, leaving unset fields alone.
func (t Tunables) Apply(cfg Config) Config {
	if t.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(t.TimeoutSeconds) * time.Second
	}
	if len(t.QuotaPatterns) > 0 {
		cfg.QuotaPatterns = t.QuotaPatterns
	}
	if len(t.FatalPatterns) > 0 {
		cfg.FatalPatterns = t.FatalPatterns
	}
	return cfg
}
