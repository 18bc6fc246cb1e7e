package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/winxlab/winx/shell"
)

// newSessionsCmd manages the host screen sessions winx creates.
func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List or clean up detachable shell sessions",
	}
	cmd.AddCommand(newSessionsListCmd(), newSessionsReapCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List screen sessions and their liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := shell.NewScreenManager()
			sessions, err := manager.List()
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No screen sessions.")
				return nil
			}
			for _, s := range sessions {
				state := "detached"
				if s.Attached {
					state = "attached"
				}
				if s.Orphaned {
					state += ", orphaned"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d.%s\t(%s)\n", s.PID, s.Name, state)
			}
			return nil
		},
	}
}

func newSessionsReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Kill orphaned winx screen sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := shell.NewScreenManager()
			killed, err := manager.KillOrphans()
			if err != nil {
				return err
			}
			if len(killed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orphaned sessions.")
				return nil
			}
			for _, name := range killed {
				fmt.Fprintf(cmd.OutOrStdout(), "killed %s\n", name)
			}
			return nil
		},
	}
}
