// Package config provides unified configuration loading for split-nlogo.
// It supports loading from YAML files and environment variables; command
// line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SPLIT_NLOGO_"

// Config contains all split-nlogo settings.
type Config struct {
	// NlogoFile is the model file holding the experiments.
	NlogoFile string `yaml:"nlogo_file" validate:"required"`

	// Experiments names the experiments to split. Mutually exclusive with
	// AllExperiments.
	Experiments []string `yaml:"experiments,omitempty" validate:"dive,required"`

	// AllExperiments splits every experiment in the file.
	AllExperiments bool `yaml:"all_experiments"`

	// RepetitionsPerRun is the number of repetitions each run file
	// carries. Zero or less disables splitting.
	RepetitionsPerRun int `yaml:"repetitions_per_run"`

	OutputDir    string `yaml:"output_dir" validate:"required"`
	OutputPrefix string `yaml:"output_prefix,omitempty"`

	// ScriptTemplate, when set, is rendered once per experiment.
	ScriptTemplate  string `yaml:"script_template,omitempty"`
	ScriptOutputDir string `yaml:"script_output_dir,omitempty"`

	CSVOutputDir   string `yaml:"csv_output_dir,omitempty"`
	CreateRunTable bool   `yaml:"create_run_table"`

	NoPathTranslation bool `yaml:"no_path_translation"`

	// RunDB is an optional SQLite ledger of every run written.
	RunDB string `yaml:"run_db,omitempty"`

	// LogLevel sets the log verbosity: "info" (default), "debug", "trace"
	// or "warn".
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=info debug trace warn"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML key, which is also the flag name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Default returns a Config with the command's default values.
func Default() *Config {
	return &Config{
		RepetitionsPerRun: 1,
		OutputDir:         ".",
		LogLevel:          "info",
	}
}

// Load returns the defaults, overlaid with the YAML file at path (when
// path is non-empty) and then with environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys absent
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// ScriptDir returns the script output directory, defaulting to OutputDir.
func (c *Config) ScriptDir() string {
	if c.ScriptOutputDir != "" {
		return c.ScriptOutputDir
	}
	return c.OutputDir
}

// CSVDir returns the directory generated scripts tell simulations to write
// their table output to, defaulting to OutputDir.
func (c *Config) CSVDir() string {
	if c.CSVOutputDir != "" {
		return c.CSVOutputDir
	}
	return c.OutputDir
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}

	if c.AllExperiments && len(c.Experiments) > 0 {
		return errors.New("experiments and all_experiments are mutually exclusive")
	}
	if !c.AllExperiments && len(c.Experiments) == 0 {
		return errors.New("one of experiments or all_experiments is required")
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "oneof":
		return fmt.Errorf("invalid %s: %v (valid: %s)", fe.Field(), fe.Value(), fe.Param())
	default:
		return fmt.Errorf("invalid %s: failed %q check", fe.Namespace(), fe.Tag())
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "NLOGO_FILE"); v != "" {
		cfg.NlogoFile = v
	}

	if v := os.Getenv(EnvPrefix + "REPETITIONS_PER_RUN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RepetitionsPerRun = n
		}
	}

	if v := os.Getenv(EnvPrefix + "OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_PREFIX"); v != "" {
		cfg.OutputPrefix = v
	}
	if v := os.Getenv(EnvPrefix + "SCRIPT_OUTPUT_DIR"); v != "" {
		cfg.ScriptOutputDir = v
	}
	if v := os.Getenv(EnvPrefix + "CSV_OUTPUT_DIR"); v != "" {
		cfg.CSVOutputDir = v
	}

	if v := os.Getenv(EnvPrefix + "NO_PATH_TRANSLATION"); v != "" {
		cfg.NoPathTranslation = v == "true" || v == "1"
	}

	if v := os.Getenv(EnvPrefix + "RUN_DB"); v != "" {
		cfg.RunDB = v
	}

	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
