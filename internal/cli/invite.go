package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/trailmate-chat/internal/chat"
)

func newInviteCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Find people and invite them to an activity",
	}
	cmd.AddCommand(newInviteSearchCommand(e), newInviteSendCommand(e))
	return cmd
}

func (e *env) inviter(ctx context.Context, activityID string) (*chat.Inviter, error) {
	controller, err := e.session(ctx, activityID)
	if err != nil {
		return nil, err
	}
	return chat.NewInviter(chat.InviterConfig{
		ActivityID:   activityID,
		Directory:    e.api,
		Invites:      e.api,
		Participants: controller,
		Tokens:       e.tokens,
		Identity:     e.identity,
		Notifier:     e.notifier(),
		Logger:       e.logger,
	})
}

func newInviteSearchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search <activity> [query]",
		Short: "List invite candidates, your friends when no query is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inviter, err := e.inviter(ctx, args[0])
			if err != nil {
				return err
			}
			if _, err := inviter.LoadFriends(ctx); err != nil {
				return err
			}

			query := ""
			if len(args) == 2 {
				query = args[1]
			}
			candidates, err := inviter.SearchCandidates(ctx, query)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Fprintln(e.out, "no matching people")
				return nil
			}
			e.render().candidates(candidates)
			return nil
		},
	}
}

func newInviteSendCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "send <activity> <user>...",
		Short: "Invite users to the activity",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inviter, err := e.inviter(ctx, args[0])
			if err != nil {
				return err
			}

			var failed []string
			for _, userID := range args[1:] {
				if inviter.Status(userID) == chat.StatusAlreadyParticipant {
					fmt.Fprintf(e.out, "%s already takes part\n", userID)
					continue
				}
				if err := inviter.Invite(ctx, userID); err != nil {
					failed = append(failed, userID)
					continue
				}
				fmt.Fprintf(e.out, "invited %s\n", userID)
			}
			if len(failed) > 0 {
				return fmt.Errorf("invite failed for %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}
