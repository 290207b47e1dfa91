package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/noah-isme/trailmate-chat/internal/chat"
	"github.com/noah-isme/trailmate-chat/internal/chat/codec"
)

func (e *env) render() renderer {
	return renderer{out: e.out, self: e.identity.UserID, now: e.now}
}

func newOpenCommand(e *env) *cobra.Command {
	var join, create bool
	var name string

	cmd := &cobra.Command{
		Use:   "open <activity>",
		Short: "Open an activity chat, joining or creating it on request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			activityID := args[0]

			if create {
				session, created, err := e.api.EnsureSession(ctx, activityID, name)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(e.out, "created chat %s for %s\n", session.ID, activityID)
				}
			}

			gate, err := e.gate()
			if err != nil {
				return err
			}
			session, access, err := gate.Check(ctx, activityID)
			if errors.Is(err, chat.ErrSessionNotFound) {
				return fmt.Errorf("no chat for %s yet, run: chatctl open %s --create", activityID, activityID)
			}
			if err != nil {
				return err
			}

			if access == chat.AccessJoinRequired {
				if !join {
					fmt.Fprintf(e.out, "%s has %d participants. Join to read and post: chatctl open %s --join\n",
						displayName(session), len(session.ParticipantIDs), activityID)
					return nil
				}
				if session, err = gate.ConfirmJoin(ctx, activityID); err != nil {
					return err
				}
				fmt.Fprintf(e.out, "joined %s\n", displayName(session))
			}

			controller, err := e.session(ctx, activityID)
			if err != nil {
				return err
			}
			loaded, _ := controller.Session()
			fmt.Fprintf(e.out, "== %s (%d participants)\n", displayName(loaded), len(loaded.ParticipantIDs))
			e.render().messages(controller.Messages())
			return nil
		},
	}
	cmd.Flags().BoolVar(&join, "join", false, "confirm joining when the chat asks for it")
	cmd.Flags().BoolVar(&create, "create", false, "create the chat when the activity has none")
	cmd.Flags().StringVar(&name, "name", "", "display name for a newly created chat")
	return cmd
}

func displayName(session chat.Session) string {
	if strings.TrimSpace(session.DisplayName) != "" {
		return session.DisplayName
	}
	return session.ActivityID
}

func newHistoryCommand(e *env) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "history <activity>",
		Short: "Print the messages of an activity chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			messages := controller.Messages()
			if last > 0 && len(messages) > last {
				messages = messages[len(messages)-last:]
			}
			e.render().messages(messages)
			return nil
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 0, "only print the newest n messages")
	return cmd
}

func newWatchCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <activity>",
		Short: "Follow new and edited messages until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			controller, err := e.session(ctx, args[0])
			if err != nil {
				return err
			}
			r := e.render()
			err = e.api.Watch(ctx, loadedChatID(controller), func(event chat.StreamEvent) {
				controller.Receive(event)
				if event.Type == chat.StreamMessageUpdated {
					fmt.Fprint(e.out, "(edited) ")
				}
				r.message(event.Message)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func loadedChatID(controller *chat.SessionController) string {
	session, _ := controller.Session()
	return session.ID
}

func newSendCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "send <activity> <text>...",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withSession(cmd.Context(), args[0], func(ctx context.Context, controller *chat.SessionController) (chat.Message, error) {
				return controller.SendText(ctx, strings.Join(args[1:], " "))
			})
		},
	}
}

// withSession loads activityID, runs send and prints the stored message.
func (e *env) withSession(ctx context.Context, activityID string, send func(context.Context, *chat.SessionController) (chat.Message, error)) error {
	controller, err := e.session(ctx, activityID)
	if err != nil {
		return err
	}
	msg, err := send(ctx, controller)
	if err != nil {
		return err
	}
	e.render().message(msg)
	return nil
}

func newPollCommand(e *env) *cobra.Command {
	var question string
	var options []string
	cmd := &cobra.Command{
		Use:   "poll <activity>",
		Short: "Start a poll",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withSession(cmd.Context(), args[0], func(ctx context.Context, controller *chat.SessionController) (chat.Message, error) {
				return controller.SendPayload(ctx, codec.Poll{Question: question, Options: options})
			})
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "poll question")
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "poll option, repeat for each option")
	return cmd
}

func newEventCommand(e *env) *cobra.Command {
	var event codec.Event
	var edit string
	cmd := &cobra.Command{
		Use:   "event <activity>",
		Short: "Propose an event, or edit one of yours with --edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withSession(cmd.Context(), args[0], func(ctx context.Context, controller *chat.SessionController) (chat.Message, error) {
				if edit != "" {
					return controller.UpdateEventMessage(ctx, edit, event)
				}
				return controller.SendPayload(ctx, event)
			})
		},
	}
	cmd.Flags().StringVar(&event.Title, "title", "", "event title")
	cmd.Flags().StringVar(&event.Date, "date", "", "event date, for example 2026-11-02")
	cmd.Flags().StringVar(&event.Time, "time", "", "event time, for example 05:30")
	cmd.Flags().StringVar(&event.Description, "description", "", "event description")
	cmd.Flags().StringVar(&edit, "edit", "", "id of your event message to replace")
	return cmd
}

func newPayCommand(e *env) *cobra.Command {
	var request codec.PaymentRequest
	cmd := &cobra.Command{
		Use:   "pay <activity>",
		Short: "Request a payment from the participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withSession(cmd.Context(), args[0], func(ctx context.Context, controller *chat.SessionController) (chat.Message, error) {
				return controller.SendPayload(ctx, request)
			})
		},
	}
	cmd.Flags().Float64Var(&request.Amount, "amount", 0, "amount to collect")
	cmd.Flags().StringVar(&request.Reason, "reason", "", "what the payment is for")
	return cmd
}

func newContactCommand(e *env) *cobra.Command {
	var card codec.ContactCard
	cmd := &cobra.Command{
		Use:   "contact <activity>",
		Short: "Share a contact card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withSession(cmd.Context(), args[0], func(ctx context.Context, controller *chat.SessionController) (chat.Message, error) {
				return controller.SendPayload(ctx, card)
			})
		},
	}
	cmd.Flags().StringVar(&card.ID, "id", "", "user id of the contact")
	cmd.Flags().StringVar(&card.Name, "name", "", "display name of the contact")
	cmd.Flags().StringVar(&card.AvatarURL, "avatar", "", "avatar url of the contact")
	return cmd
}

func newAttachCommand(e *env) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "attach <activity> <file>",
		Short: "Send a file as an image, audio or document message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			file := chat.File{Name: filepath.Base(args[1]), Data: data}
			fmt.Fprintf(e.out, "uploading %s (%s)\n", file.Name, humanize.Bytes(uint64(file.Size())))

			return e.withSession(cmd.Context(), args[0], func(ctx context.Context, controller *chat.SessionController) (chat.Message, error) {
				return controller.SendAttachment(ctx, file, chat.Kind(kind))
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "image, audio or document; sniffed from the content when empty")
	return cmd
}

func newVoteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <activity> <message> <option>...",
		Short: "Toggle poll options and print your selection",
		Long: `Each option index toggles the selection, so naming an option twice
clears it. Votes are kept on this device only.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			poll, err := findPoll(controller.Messages(), args[1])
			if err != nil {
				return err
			}

			var selection []int
			for _, raw := range args[2:] {
				index, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("%w: option %q is not a number", chat.ErrValidation, raw)
				}
				if selection, err = controller.Vote(args[1], index); err != nil {
					return err
				}
			}

			fmt.Fprintf(e.out, "[poll] %s\n", poll.Question)
			for i, option := range poll.Options {
				mark := " "
				for _, picked := range selection {
					if picked == i {
						mark = "x"
					}
				}
				fmt.Fprintf(e.out, "  [%s] %d) %s\n", mark, i, option)
			}
			return nil
		},
	}
}

func findPoll(messages []chat.Message, messageID string) (codec.Poll, error) {
	for _, msg := range messages {
		if msg.ID != messageID {
			continue
		}
		if poll, ok := chat.ContentOf(msg).(chat.PollContent); ok {
			return poll.Poll, nil
		}
		return codec.Poll{}, fmt.Errorf("%w: message %s is not a poll", chat.ErrValidation, messageID)
	}
	return codec.Poll{}, fmt.Errorf("%w: message %s not found", chat.ErrValidation, messageID)
}

func newRSVPCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "rsvp <activity> <message> <label>",
		Short: "Answer an event, for example going or maybe",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := e.session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			found := false
			for _, msg := range controller.Messages() {
				if _, ok := chat.ContentOf(msg).(chat.EventContent); ok && msg.ID == args[1] {
					found = true
				}
			}
			if !found {
				return fmt.Errorf("%w: message %s is not an event", chat.ErrValidation, args[1])
			}
			label := controller.RespondToEvent(args[1], args[2])
			if label == "" {
				fmt.Fprintln(e.out, "response cleared")
				return nil
			}
			fmt.Fprintf(e.out, "responded %s\n", label)
			return nil
		},
	}
}

func newVoiceCommand(e *env) *cobra.Command {
	var length time.Duration
	cmd := &cobra.Command{
		Use:   "voice <activity> <file>",
		Short: "Send a recorded clip as a voice message",
		Long: `The clip is replayed through the voice recorder, so it is cut at the
maximum recording length and clips shorter than a second are dropped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			controller, err := e.session(ctx, args[0])
			if err != nil {
				return err
			}

			sink := sentAudio{controller: controller, result: make(chan sentResult, 1)}
			recorder := chat.NewRecorder(fileMicrophone{path: args[1], duration: length}, sink, e.notifier(), chat.RecorderConfig{
				MaxDuration: e.cfg.RecordMaxDuration,
				Tick:        e.cfg.RecordTick,
			}, e.logger)
			if err := recorder.Start(ctx); err != nil {
				return err
			}

			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case res := <-sink.result:
					if res.err != nil {
						return res.err
					}
					e.render().message(res.msg)
					return nil
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if recorder.State() == chat.RecorderIdle && len(sink.result) == 0 {
						return chat.ErrRecordingTooShort
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&length, "length", 0, "length of the clip, for example 4s")
	_ = cmd.MarkFlagRequired("length")
	return cmd
}
