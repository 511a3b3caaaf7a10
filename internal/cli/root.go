// Package cli implements the branchpoints command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/branchpoints/internal/config"
	"github.com/dshills/branchpoints/internal/session"
)

// Version information (set via ldflags during build).
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

const (
	exitSuccess   = 0
	exitUserError = 1
)

// rootFlags holds global flag values.
type rootFlags struct {
	workspace  string
	configFile string
	logLevel   string
	verbose    bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags rootFlags
	cfg   *config.Config
	sess  *session.Session
}

// NewRootCmd creates the top-level "branchpoints" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "branchpoints",
		Short: "Per-branch breakpoint memory",
		Long: `Branchpoints remembers the breakpoints set on each branch of a
repository and restores them when that branch is checked out again.`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVarP(&a.flags.workspace, "workspace", "w", "", "workspace directory (default: current directory)")
	root.PersistentFlags().StringVar(&a.flags.configFile, "config", "", "config file (default: <workspace>/"+config.FileName+")")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newBranchCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newApplyCmd(a))
	root.AddCommand(newPrintCmd(a))
	root.AddCommand(newClearCmd(a))
	root.AddCommand(newDedupCmd(a))
	root.AddCommand(newScriptCmd(a))

	// PersistentPostRunE is skipped when RunE fails.
	for _, c := range root.Commands() {
		run := c.RunE
		if run == nil {
			continue
		}
		c.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil {
				a.close()
			}
			return err
		}
	}

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitUserError)
	}
	os.Exit(exitSuccess)
}

// loadConfig builds the effective configuration once per invocation.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	overrides := map[string]any{}
	if a.flags.logLevel != "" {
		overrides[config.KeyLoggingEnabled] = true
		overrides[config.KeyLoggingLevel] = a.flags.logLevel
	}
	if a.flags.verbose {
		overrides[config.KeyLoggingEnabled] = true
		overrides[config.KeyLoggingLevel] = "debug"
	}

	cfg, err := config.Load(config.Options{
		Workspace: a.flags.workspace,
		File:      a.flags.configFile,
		Overrides: overrides,
	})
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// open loads the configuration and opens a passive session on the
// workspace: the host is left alone until the command changes it.
func (a *app) open(cmd *cobra.Command) (*session.Session, error) {
	return a.openSession(cmd, true)
}

// openActive opens a session that applies the active branch at once.
func (a *app) openActive(cmd *cobra.Command) (*session.Session, error) {
	return a.openSession(cmd, false)
}

func (a *app) openSession(cmd *cobra.Command, passive bool) (*session.Session, error) {
	if a.sess != nil {
		return a.sess, nil
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	sess, err := session.New(session.Options{
		Config:       cfg,
		ScriptOutput: cmd.OutOrStdout(),
		Passive:      passive,
	})
	if err != nil {
		return nil, err
	}
	if err := sess.Open(commandContext(cmd)); err != nil {
		sess.Close()
		return nil, err
	}
	a.sess = sess
	return sess, nil
}

func (a *app) close() error {
	if a.sess == nil {
		return nil
	}
	err := a.sess.Close()
	a.sess = nil
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
