package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/winxlab/winx/app/winx/tui"
	"github.com/winxlab/winx/shell"
)

// newConsoleCmd opens the interactive console on a fresh shell session rooted
// at the workspace.
func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive console attached to a winx shell session",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := shell.NewManager(shell.NewScreenManager())
			defer manager.CloseAll()
			session, err := manager.GetOrCreate("console", workspace)
			if err != nil {
				return err
			}
			return tui.Run(context.Background(), session)
		},
	}
}
