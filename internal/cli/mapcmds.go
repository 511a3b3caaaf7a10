package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/dshills/branchpoints/internal/branchmap"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow checkouts and breakpoint edits until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cmd.SetContext(ctx)
			sess, err := a.openActive(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching %s on %s\n", sess.Config().Workspace, sess.Branch())
			return sess.Run(ctx)
		},
	}
}

func newApplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply [branch]",
		Short: "Apply the stored breakpoints of a branch (default: active branch)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd)
			if err != nil {
				return err
			}
			var branch string
			if len(args) == 1 {
				branch = args[0]
			}
			plan, err := sess.ApplyBranch(branch)
			if err != nil {
				return err
			}
			if plan.Empty() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to apply\n", plan.Branch)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: added %d, removed %d\n", plan.Branch, len(plan.ToAdd), len(plan.ToRemove))
			return nil
		},
	}
}

func newPrintCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the stored branch map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
			sess, err := a.open(cmd)
			if err != nil {
				return err
			}
			m, err := sess.PrintMap()
			if err != nil {
				return err
			}
			out, err := renderMap(m, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

// renderMap renders m in its persisted JSON shape, or the same tree as YAML.
func renderMap(m *branchmap.Map, format string) ([]byte, error) {
	data, err := m.Encode()
	if err != nil {
		return nil, err
	}
	if format == "json" {
		return []byte(gjson.GetBytes(data, "@pretty").Raw), nil
	}
	return yaml.Marshal(gjson.ParseBytes(data).Value())
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the breakpoints stored for every branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd)
			if err != nil {
				return err
			}
			if err := sess.ClearMap(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "branch map cleared")
			return nil
		},
	}
}

func newDedupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dedup",
		Short: "Remove duplicate breakpoints from the stored map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd)
			if err != nil {
				return err
			}
			summary, err := sess.Dedup(commandContext(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !summary.Changed {
				fmt.Fprintln(out, "no duplicates found")
				return nil
			}
			for _, r := range summary.Results {
				fmt.Fprintf(out, "%s: removed %d duplicate(s), %d malformed\n", r.Branch, r.Duplicates, r.Malformed)
			}
			return nil
		},
	}
}

func newScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "script FILE",
		Short: "Run a Lua script against the workspace session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd)
			if err != nil {
				return err
			}
			return sess.RunScript(commandContext(cmd), args[0])
		},
	}
}
