// Package config holds the command-line configuration of the digits tool.
// Flags take their defaults from the environment, so a deployment can point
// at a parameter file or backend without changing the invocation.
package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/born-ml/digits/internal/params"
	"github.com/pkg/errors"
)

// Environment variables that provide flag defaults.
const (
	ParamsEnv  = "DIGITS_PARAMS"
	BackendEnv = "DIGITS_BACKEND"
)

// Backend names accepted by -backend.
const (
	BackendCPU    = "cpu"
	BackendWebGPU = "webgpu"
	// BackendAuto uses WebGPU when available and falls back to the CPU.
	BackendAuto = "auto"
)

// Config is the full CLI configuration.
type Config struct {
	// ParamsSource is a file path or http(s) URL of the parameter JSON.
	ParamsSource string
	WeightPrefix string
	BiasPrefix   string

	Backend string

	// Image is a PNG/JPEG to classify; Grid is a JSON 28x28 grid, "-" for stdin.
	Image string
	Grid  string

	// Bench, if > 0, runs that many inferences and reports throughput.
	Bench int

	WeightActivations bool
	Progress          bool
	Color             bool
}

// Default returns the configuration used when no flag is given, with
// environment overrides applied.
func Default() *Config {
	cfg := &Config{
		ParamsSource:      "params.json",
		WeightPrefix:      params.DefaultWeightPrefix,
		BiasPrefix:        params.DefaultBiasPrefix,
		Backend:           BackendCPU,
		WeightActivations: true,
		Progress:          true,
		Color:             true,
	}
	if v, found := os.LookupEnv(ParamsEnv); found && v != "" {
		cfg.ParamsSource = v
	}
	if v, found := os.LookupEnv(BackendEnv); found && v != "" {
		cfg.Backend = v
	}
	return cfg
}

// RegisterFlags binds the fields of cfg to fs, using the current values as
// defaults.
func (cfg *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&cfg.ParamsSource, "params", cfg.ParamsSource,
		"Parameter JSON file or http(s) URL. Defaults to $"+ParamsEnv+" if set.")
	fs.StringVar(&cfg.WeightPrefix, "weight-prefix", cfg.WeightPrefix, "Key prefix of weight matrices.")
	fs.StringVar(&cfg.BiasPrefix, "bias-prefix", cfg.BiasPrefix, "Key prefix of bias vectors.")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend,
		"Compute backend: 'cpu', 'webgpu' or 'auto'. Defaults to $"+BackendEnv+" if set.")
	fs.StringVar(&cfg.Image, "image", cfg.Image, "PNG or JPEG image of a digit to classify.")
	fs.StringVar(&cfg.Grid, "grid", cfg.Grid, "JSON 28x28 grid to classify, '-' reads it from stdin.")
	fs.IntVar(&cfg.Bench, "bench", cfg.Bench, "Run this many inferences and report throughput.")
	fs.BoolVar(&cfg.WeightActivations, "weight-activations", cfg.WeightActivations,
		"Compute the weight-activation diagnostic of every layer.")
	fs.BoolVar(&cfg.Progress, "progress", cfg.Progress, "Show progress bars for downloads and benchmarks.")
	fs.BoolVar(&cfg.Color, "color", cfg.Color, "Use colors in the report.")
}

// Validate checks the combination of settings.
func (cfg *Config) Validate() error {
	switch cfg.Backend {
	case BackendCPU, BackendWebGPU, BackendAuto:
	default:
		return errors.Errorf("unknown backend %q, want %q, %q or %q", cfg.Backend, BackendCPU, BackendWebGPU, BackendAuto)
	}
	if cfg.ParamsSource == "" {
		return errors.New("no parameter source, set -params or $" + ParamsEnv)
	}
	if cfg.Bench < 0 {
		return errors.Errorf("-bench must be >= 0, got %d", cfg.Bench)
	}
	if cfg.Image != "" && cfg.Grid != "" {
		return errors.New("-image and -grid are mutually exclusive")
	}
	if cfg.Image == "" && cfg.Grid == "" && cfg.Bench == 0 {
		return errors.New("nothing to do: set -image, -grid or -bench")
	}
	return nil
}

// Loader returns the parameter loader configured by the prefix flags.
func (cfg *Config) Loader() params.Loader {
	return params.Loader{WeightPrefix: cfg.WeightPrefix, BiasPrefix: cfg.BiasPrefix}
}

// String summarizes cfg for logging.
func (cfg *Config) String() string {
	return "params=" + cfg.ParamsSource + " backend=" + cfg.Backend +
		" weight-activations=" + strconv.FormatBool(cfg.WeightActivations)
}
