// Package cmd wires the winx command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/winxlab/winx/core"
)

var (
	cfgFile   string
	workspace string

	globalCfg *core.Config
)

// Execute is the entry point for the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd wires the cobra tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "winx",
		Short:         "Code-agent service with a persistent shell and safe file edits",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if workspace == "" {
				if wd, err := os.Getwd(); err == nil {
					workspace = wd
				} else {
					return err
				}
			}
			if cfgFile == "" {
				path, err := core.DefaultConfigPath()
				if err != nil {
					return err
				}
				cfgFile = path
			}
			cfg, err := core.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			globalCfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace directory")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to the winx config file")

	root.AddCommand(
		newServeCmd(),
		newConfigCmd(),
		newSessionsCmd(),
		newTasksCmd(),
		newConsoleCmd(),
	)
	return root
}
