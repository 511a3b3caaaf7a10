package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/dshills/branchpoints"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the branchpoints version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "branchpoints %s (commit %s, built %s)\nmodule: %s\n", Version, Commit, Date, modulePath)
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.TOML()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Source != "" {
				fmt.Fprintf(out, "# source: %s\n", cfg.Source)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newBranchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "branch",
		Short: "Print the active branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.open(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.Branch())
			return nil
		},
	}
}
