package config

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/23skdu/longbow-testfloat/internal/fenv"
	"github.com/23skdu/longbow-testfloat/internal/gencases"
	"github.com/23skdu/longbow-testfloat/internal/ops"
	"github.com/23skdu/longbow-testfloat/internal/softfloat"
	"github.com/23skdu/longbow-testfloat/internal/verify"
)

var logLevels = []string{"debug", "info", "warn", "error"}

type Config struct {
	// Operations to verify. Empty selects every registered operation.
	Operations []string `yaml:"operations"`
	Candidate  string   `yaml:"candidate"`

	Level   int    `yaml:"level"`
	Seed    uint64 `yaml:"seed"`
	Forever bool   `yaml:"forever"`

	CheckNaNs     bool     `yaml:"check_nans"`
	MaxErrors     int64    `yaml:"max_errors"`
	RoundingModes []string `yaml:"rounding_modes"`
	Tininess      string   `yaml:"tininess"`
	Exact         bool     `yaml:"exact"`
	Window        int64    `yaml:"window"`
	Parallel      int      `yaml:"parallel"`

	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
	ArrowOut    string `yaml:"arrow_out"`
	FlightAddr  string `yaml:"flight_addr"`
}

func Default() Config {
	return Config{
		Candidate:     ops.Native,
		Level:         1,
		MaxErrors:     20,
		RoundingModes: []string{fenv.NearEven.String()},
		Tininess:      softfloat.AfterRounding.String(),
		Window:        verify.DefaultWindow,
		Parallel:      runtime.NumCPU(),
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load reads a YAML file over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	for _, name := range c.Operations {
		if _, err := ops.Lookup(name); err != nil {
			return fmt.Errorf("invalid operations: %w", err)
		}
	}
	if !slices.Contains(ops.Candidates, c.Candidate) {
		return fmt.Errorf("invalid candidate: %q (must be one of %s)", c.Candidate, strings.Join(ops.Candidates, ", "))
	}
	if c.Level != 1 && c.Level != 2 {
		return fmt.Errorf("invalid level: %d (must be 1 or 2)", c.Level)
	}
	if c.MaxErrors < 0 {
		return fmt.Errorf("invalid max_errors: %d (must be non-negative)", c.MaxErrors)
	}
	if len(c.RoundingModes) == 0 {
		return fmt.Errorf("invalid rounding_modes: empty (must name at least one mode)")
	}
	if _, err := c.Modes(); err != nil {
		return fmt.Errorf("invalid rounding_modes: %w", err)
	}
	if _, err := softfloat.ParseTininess(c.Tininess); err != nil {
		return fmt.Errorf("invalid tininess: %w", err)
	}
	if c.Window <= 0 {
		return fmt.Errorf("invalid window: %d (must be positive)", c.Window)
	}
	if c.Parallel <= 0 {
		return fmt.Errorf("invalid parallel: %d (must be positive)", c.Parallel)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log_format: %q (must be json or console)", c.LogFormat)
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log_level: %q (must be one of %s)", c.LogLevel, strings.Join(logLevels, ", "))
	}
	return nil
}

// Modes parses RoundingModes, dropping duplicates.
func (c *Config) Modes() ([]fenv.RoundingMode, error) {
	modes := make([]fenv.RoundingMode, 0, len(c.RoundingModes))
	for _, s := range c.RoundingModes {
		m, err := fenv.ParseRoundingMode(s)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(modes, m) {
			modes = append(modes, m)
		}
	}
	return modes, nil
}

// Run is one (operation, rounding mode) pair ready to execute.
type Run struct {
	Operation *ops.Operation
	Settings  ops.Settings
}

// Skip names a pair the configured candidate cannot run.
type Skip struct {
	Operation string
	Mode      fenv.RoundingMode
}

// Runs expands the configuration into one run per operation and mode.
// Pairs the candidate does not support are returned separately.
func (c *Config) Runs() ([]Run, []Skip, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	names := c.Operations
	if len(names) == 0 {
		names = ops.Names()
	}
	modes, _ := c.Modes()
	tininess, _ := softfloat.ParseTininess(c.Tininess)

	var runs []Run
	var skipped []Skip
	for _, name := range names {
		op, _ := ops.Lookup(name)
		for _, mode := range modes {
			if !op.Supports(c.Candidate, mode) {
				skipped = append(skipped, Skip{Operation: name, Mode: mode})
				continue
			}
			runs = append(runs, Run{
				Operation: op,
				Settings: ops.Settings{
					Mode:     mode,
					Tininess: tininess,
					Exact:    c.Exact,
					Cases: gencases.Options{
						Level:   c.Level,
						Seed:    c.Seed,
						Forever: c.Forever,
					},
					Verify: verify.Options{
						CheckNaNs: c.CheckNaNs,
						MaxErrors: c.MaxErrors,
						Window:    c.Window,
					},
				},
			})
		}
	}
	return runs, skipped, nil
}
