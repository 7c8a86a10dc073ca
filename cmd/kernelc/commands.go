package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/intrinsics"
	"github.com/wippyai/gpu-runtime/kernel"
	"github.com/wippyai/gpu-runtime/target"
)

func newDevicesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List devices visible to the driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.manager()
			if err != nil {
				return err
			}
			infos, err := mgr.Devices()
			if err != nil {
				return err
			}
			rows := make([][]string, len(infos))
			for i, info := range infos {
				tgt := "-"
				if t, err := target.ForCapability(info.Capability); err == nil {
					tgt = t.Name
				}
				rows[i] = []string{
					strconv.Itoa(info.Ordinal),
					info.Name,
					info.Capability.String(),
					tgt,
					fmt.Sprintf("%d MiB", info.TotalMem>>20),
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, []string{"#", "NAME", "CAPABILITY", "TARGET", "MEMORY"}, rows))
			return nil
		},
	}
}

type intrinsicsOptions struct {
	family      string
	interactive bool
}

func newIntrinsicsCommand(a *app) *cobra.Command {
	opts := &intrinsicsOptions{}
	cmd := &cobra.Command{
		Use:   "intrinsics",
		Short: "List the intrinsic catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := catalogEntries(opts.family)
			if err != nil {
				return err
			}
			if opts.interactive {
				if !isTerminal(cmd.OutOrStdout()) {
					return errors.Unsupported(errors.PhaseConfig, "interactive mode needs a terminal")
				}
				return pinned(func() error {
					t, err := a.resolveTarget()
					if err != nil {
						return err
					}
					return runInteractive(a.session(t), entries)
				})
			}
			rows := make([][]string, len(entries))
			for i, in := range entries {
				rows[i] = []string{in.Name, string(in.Family), signature(in), in.Template}
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(out, []string{"NAME", "FAMILY", "SIGNATURE", "LOWERS TO"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.family, "family", "f", "", "only list one family (index|warp|barrier|math|shuffle)")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse the catalog interactively")
	return cmd
}

func catalogEntries(family string) ([]*intrinsics.Intrinsic, error) {
	c := intrinsics.Default()
	if family != "" {
		entries := c.Family(intrinsics.Family(family))
		if len(entries) == 0 {
			return nil, errors.NotFound(errors.PhaseConfig, "family", family)
		}
		return entries, nil
	}
	var out []*intrinsics.Intrinsic
	for _, f := range c.Families() {
		out = append(out, c.Family(f)...)
	}
	return out, nil
}

func signature(in *intrinsics.Intrinsic) string {
	params := make([]string, len(in.Params))
	for i, p := range in.Params {
		params[i] = p.String()
		if i >= in.MinArgs() {
			params[i] += "?"
		}
	}
	return "(" + strings.Join(params, ", ") + ") -> " + in.Result.String()
}

// resolveTarget uses the configured target, or the device bound to the
// calling thread.
func (a *app) resolveTarget() (target.Target, error) {
	if a.cfg.Target != "" {
		return target.GetTarget(a.cfg.Target)
	}
	mgr, err := a.manager()
	if err != nil {
		return target.Target{}, err
	}
	info, err := mgr.Info()
	if err != nil {
		return target.Target{}, err
	}
	return target.ForCapability(info.Capability)
}

func (a *app) session(t target.Target) *intrinsics.Session {
	return intrinsics.NewSession(t, intrinsics.WithLLVM(a.cfg.LLVM))
}

func newEmitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "emit <intrinsic>",
		Short: "Print the IR fragment an intrinsic lowers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return pinned(func() error {
				t, err := a.resolveTarget()
				if err != nil {
					return err
				}
				frag, err := a.session(t).EmitFragment(args[0])
				if err != nil {
					return err
				}
				a.log.Debug("emitted fragment", zap.String("intrinsic", args[0]), zap.String("target", t.Name))
				fmt.Fprint(cmd.OutOrStdout(), frag.String())
				return nil
			})
		},
	}
}

type compileOptions struct {
	example string
	output  string
}

func newCompileCommand(a *app) *cobra.Command {
	opts := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a bundled kernel to an IR module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := kernel.Example(opts.example)
			if err != nil {
				return err
			}
			return pinned(func() error {
				c, err := a.compiler()
				if err != nil {
					return err
				}
				img, err := c.Compile(cmd.Context(), k)
				if err != nil {
					return err
				}
				if opts.output == "" {
					fmt.Fprint(cmd.OutOrStdout(), img.IR)
					return nil
				}
				if err := os.WriteFile(opts.output, []byte(img.IR), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", opts.output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d kernel(s))\n", opts.output, img.Target.Name, len(img.Kernels))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&opts.example, "example", "e", "vadd", "bundled kernel (vadd|reduce)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file path")
	return cmd
}

func newResetCommand(a *app) *cobra.Command {
	var ordinal int
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a device's primary context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return pinned(func() error {
				mgr, err := a.manager()
				if err != nil {
					return err
				}
				infos, err := mgr.Devices()
				if err != nil {
					return err
				}
				if ordinal < 0 || ordinal >= len(infos) {
					return errors.NotFound(errors.PhaseContext, "device", strconv.Itoa(ordinal))
				}
				if err := mgr.ResetDevice(infos[ordinal].Device); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset device %d (%s)\n", ordinal, infos[ordinal].Name)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&ordinal, "device", "d", 0, "device ordinal")
	return cmd
}
