package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/winxlab/winx/core"
	"github.com/winxlab/winx/persistence"
)

// newTasksCmd inspects saved context snapshots.
func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List or show saved task contexts",
	}
	cmd.AddCommand(newTasksListCmd(), newTasksShowCmd())
	return cmd
}

func openContextStore() (*persistence.ContextStore, error) {
	dataDir, err := core.DataDir()
	if err != nil {
		return nil, err
	}
	return persistence.NewContextStore(dataDir)
}

func newTasksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved task contexts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openContextStore()
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved tasks.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d files\t%s\n",
					e.ID, e.Timestamp.Format("2006-01-02 15:04"), e.FileCount, e.Description)
			}
			return nil
		},
	}
}

func newTasksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print a saved task context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openContextStore()
			if err != nil {
				return err
			}
			body, err := store.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}
