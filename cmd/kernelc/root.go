package main

import (
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/gpu-runtime/device"
	"github.com/wippyai/gpu-runtime/driver"
	"github.com/wippyai/gpu-runtime/driver/cuda"
	"github.com/wippyai/gpu-runtime/kernel"
	"github.com/wippyai/gpu-runtime/sim"
)

// RootOptions holds the persistent flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Driver     string
	SimDevices []string
	LLVM       int
	Target     string
	LogLevel   string
	DevLog     bool
}

// app is the per-invocation state built by the root pre-run hook.
type app struct {
	opts *RootOptions
	cfg  *Config
	log  *zap.Logger

	// openDriver is replaced in tests.
	openDriver func(cfg *Config) (driver.Driver, error)

	mgr *device.Manager
}

func openDriver(cfg *Config) (driver.Driver, error) {
	if cfg.Driver == "sim" {
		return sim.NewDriver(sim.WithCapabilities(cfg.SimDevices...)), nil
	}
	drv, err := cuda.Open()
	if err != nil {
		return nil, err
	}
	return drv, nil
}

// manager opens the configured driver on first use.
func (a *app) manager() (*device.Manager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	drv, err := a.openDriver(a.cfg)
	if err != nil {
		return nil, err
	}
	a.mgr = device.NewManager(drv, nil)
	return a.mgr, nil
}

func (a *app) compiler() (*kernel.Compiler, error) {
	mgr, err := a.manager()
	if err != nil {
		return nil, err
	}
	return kernel.NewCompiler(mgr, &kernel.Config{LLVM: a.cfg.LLVM, Target: a.cfg.Target}), nil
}

// pinned runs fn on a locked OS thread so device bindings made by fn stay
// visible to the rest of fn.
func pinned(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return fn()
}

func (a *app) close() {
	if a.mgr != nil {
		if err := a.mgr.Close(); err != nil {
			a.log.Warn("release contexts", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

// NewRootCommand creates the kernelc command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	a := &app{opts: opts, log: zap.NewNop(), openDriver: openDriver}
	return newRootCommand(a)
}

func newRootCommand(a *app) *cobra.Command {
	opts := a.opts
	cmd := &cobra.Command{
		Use:   "kernelc",
		Short: "GPU kernel compiler and device tool",
		Long: `kernelc compiles Go-authored kernels to NVPTX IR, browses the
intrinsic catalog and inspects the devices visible to the CUDA driver.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.ConfigPath, cmd.Flags())
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = log
			installLogger(log)
			log.Debug("configuration", zap.Stringer("config", cfg))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&opts.Driver, "driver", "cuda", "driver backend (cuda|sim)")
	pf.StringSliceVar(&opts.SimDevices, "sim-devices", []string{"7.0"}, "simulated device capabilities")
	pf.IntVar(&opts.LLVM, "llvm", 0, "toolchain LLVM major version")
	pf.StringVar(&opts.Target, "target", "", "target override, e.g. sm_75")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level")
	pf.BoolVar(&opts.DevLog, "dev-log", false, "development log format")

	cmd.AddCommand(newDevicesCommand(a))
	cmd.AddCommand(newIntrinsicsCommand(a))
	cmd.AddCommand(newEmitCommand(a))
	cmd.AddCommand(newCompileCommand(a))
	cmd.AddCommand(newResetCommand(a))
	return cmd
}
