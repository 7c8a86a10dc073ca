package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gpuruntime "github.com/wippyai/gpu-runtime"
	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/target"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernelc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("driver", "cuda", "")
	fs.StringSlice("sim-devices", nil, "")
	fs.Int("llvm", 0, "")
	fs.String("target", "", "")
	fs.String("log-level", "warn", "")
	fs.Bool("dev-log", false, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "cuda", cfg.Driver)
	assert.Equal(t, []gpuruntime.Version{{Major: 7}}, cfg.SimDevices)
	assert.Equal(t, target.DefaultLLVM, cfg.LLVM)
	assert.Equal(t, "", cfg.Target)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.LogDev)
}

func TestConfigLayers(t *testing.T) {
	path := writeConfig(t, `
driver: sim
sim:
  devices: [6.1, "8.6"]
target:
  llvm: 15
  name: sm_75
log:
  level: info
  development: true
`)

	cfg, err := loadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "sim", cfg.Driver)
	assert.Equal(t, []gpuruntime.Version{{Major: 6, Minor: 1}, {Major: 8, Minor: 6}}, cfg.SimDevices)
	assert.Equal(t, 15, cfg.LLVM)
	assert.Equal(t, "sm_75", cfg.Target)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogDev)

	t.Setenv("KERNELC_TARGET_LLVM", "12")
	t.Setenv("KERNELC_SIM_DEVICES", "5.0,9.0")
	cfg, err = loadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.LLVM)
	assert.Equal(t, []gpuruntime.Version{{Major: 5}, {Major: 9}}, cfg.SimDevices)

	cfg, err = loadConfig(path, testFlags(t, "--llvm", "3", "--target", "sm_35"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.LLVM)
	assert.Equal(t, "sm_35", cfg.Target)
	assert.Equal(t, "sim", cfg.Driver, "unset flags keep lower layers")
}

func TestConfigDeviceLists(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		env   string
		flags []string
		want  []gpuruntime.Version
	}{
		{"yaml whole numbers", "sim:\n  devices: [8.0, 7]\n", "", nil, []gpuruntime.Version{{Major: 8}, {Major: 7}}},
		{"yaml scalar", "sim:\n  devices: \"7.5\"\n", "", nil, []gpuruntime.Version{{Major: 7, Minor: 5}}},
		{"env with spaces", "", "6.1, 7.0", nil, []gpuruntime.Version{{Major: 6, Minor: 1}, {Major: 7}}},
		{"flag slice", "", "3.5", []string{"--sim-devices", "6.1,7.5"}, []gpuruntime.Version{{Major: 6, Minor: 1}, {Major: 7, Minor: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}
			if tt.env != "" {
				t.Setenv("KERNELC_SIM_DEVICES", tt.env)
			}
			var fs *pflag.FlagSet
			if tt.flags != nil {
				fs = testFlags(t, tt.flags...)
			}
			cfg, err := loadConfig(path, fs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.SimDevices)
		})
	}
}

func TestConfigTypedValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		ok   bool
	}{
		{"llvm from env", map[string]string{"KERNELC_TARGET_LLVM": "14"}, true},
		{"bool from env", map[string]string{"KERNELC_LOG_DEVELOPMENT": "true"}, true},
		{"llvm not a number", map[string]string{"KERNELC_TARGET_LLVM": "seven"}, false},
		{"bool not a bool", map[string]string{"KERNELC_LOG_DEVELOPMENT": "maybe"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := loadConfig("", nil)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, errors.KindInvalidInput), err.Error())
				return
			}
			require.NoError(t, err)
			if v, ok := tt.env["KERNELC_TARGET_LLVM"]; ok {
				assert.Equal(t, v, strconv.Itoa(cfg.LLVM))
			}
			if _, ok := tt.env["KERNELC_LOG_DEVELOPMENT"]; ok {
				assert.True(t, cfg.LogDev)
			}
		})
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		kind  errors.Kind
	}{
		{"driver", []string{"--driver", "rocm"}, errors.KindInvalidInput},
		{"device version", []string{"--sim-devices", "seven"}, errors.KindInvalidInput},
		{"negative llvm", []string{"--llvm=-1"}, errors.KindInvalidInput},
		{"unknown target", []string{"--target", "sm_11"}, errors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig("", testFlags(t, tt.flags...))
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, tt.kind), err.Error())
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(&Config{LogLevel: "debug", LogDev: true})
	assert.NoError(t, err)
	_, err = newLogger(&Config{LogLevel: "loud"})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}
