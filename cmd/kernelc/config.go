package main

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	gpuruntime "github.com/wippyai/gpu-runtime"
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/target"
)

const envPrefix = "KERNELC_"

// Config is the resolved CLI configuration.
type Config struct {
	Driver     string
	SimDevices []gpuruntime.Version
	LLVM       int
	Target     string
	LogLevel   string
	LogDev     bool
}

var defaults = map[string]any{
	"driver":          "cuda",
	"sim.devices":     []string{"7.0"},
	"target.llvm":     target.DefaultLLVM,
	"target.name":     "",
	"log.level":       "warn",
	"log.development": false,
}

// flagKeys maps persistent flag names onto config keys.
var flagKeys = map[string]string{
	"driver":      "driver",
	"sim-devices": "sim.devices",
	"llvm":        "target.llvm",
	"target":      "target.name",
	"log-level":   "log.level",
	"dev-log":     "log.development",
}

// rawConfig is the koanf tree before validation.
type rawConfig struct {
	Driver string `koanf:"driver"`
	Sim    struct {
		Devices []string `koanf:"devices"`
	} `koanf:"sim"`
	Target struct {
		LLVM int    `koanf:"llvm"`
		Name string `koanf:"name"`
	} `koanf:"target"`
	Log struct {
		Level       string `koanf:"level"`
		Development bool   `koanf:"development"`
	} `koanf:"log"`
}

// loadConfig layers defaults, the optional YAML file, KERNELC_* environment
// variables and explicitly set flags, in that order.
func loadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load "+path)
		}
	}

	// KERNELC_SIM_DEVICES -> sim.devices, KERNELC_LOG_LEVEL -> log.level
	envCB := func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}
	if err := k.Load(env.Provider(envPrefix, ".", envCB), nil); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "environment")
	}

	if flags != nil {
		// unchanged flags are skipped because every key already has a default
		flagCB := func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagCB), nil); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "flags")
		}
	}

	return decodeConfig(k)
}

func decodeConfig(k *koanf.Koanf) (*Config, error) {
	var raw rawConfig
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode")
	}
	cfg := &Config{
		Driver:   strings.ToLower(raw.Driver),
		LLVM:     raw.Target.LLVM,
		Target:   raw.Target.Name,
		LogLevel: raw.Log.Level,
		LogDev:   raw.Log.Development,
	}
	switch cfg.Driver {
	case "cuda", "sim":
	default:
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("driver").
			Value(cfg.Driver).
			Detail("driver must be cuda or sim").
			Build()
	}

	for _, s := range raw.Sim.Devices {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		// YAML reads 8.0 as a float and renders it back as "8"
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		v, err := gpuruntime.ParseVersion(s)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "sim.devices")
		}
		cfg.SimDevices = append(cfg.SimDevices, v)
	}

	if cfg.LLVM < 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("target", "llvm").
			Value(cfg.LLVM).
			Detail("must not be negative").
			Build()
	}
	if cfg.Target != "" {
		if _, err := target.GetTarget(cfg.Target); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("driver=%s llvm=%d target=%q log=%s", c.Driver, c.LLVM, c.Target, c.LogLevel)
}
