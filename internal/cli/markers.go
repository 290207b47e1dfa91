package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newMarkersCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markers",
		Short: "Inspect the chats this device remembers joining",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List remembered joins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := e.markers.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(e.out, "no joined chats")
				return nil
			}
			for _, m := range entries {
				fmt.Fprintf(e.out, "%s\tjoined %s\n", m.ActivityID, humanize.RelTime(m.JoinedAt, e.now(), "ago", "from now"))
			}
			return nil
		},
	}

	forget := &cobra.Command{
		Use:   "forget <activity>",
		Short: "Forget a join so the chat asks again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.markers.Forget(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "forgot %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, forget)
	return cmd
}
