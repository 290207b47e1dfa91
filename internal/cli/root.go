// Package cli implements chatctl, a terminal client for activity chats.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/trailmate-chat/internal/auth"
	"github.com/noah-isme/trailmate-chat/internal/chat"
	"github.com/noah-isme/trailmate-chat/internal/client"
	"github.com/noah-isme/trailmate-chat/internal/config"
	"github.com/noah-isme/trailmate-chat/internal/markers"
)

// MarkerStore is the local join marker store used by the client.
type MarkerStore interface {
	chat.JoinMarkers
	Forget(ctx context.Context, activityID string) error
	List(ctx context.Context) ([]markers.Marker, error)
}

// Options customise how the root command builds its environment.
type Options struct {
	Out        io.Writer
	Err        io.Writer
	LoadConfig func() (config.ClientConfig, error)
	// OpenMarkers overrides the pebble store at the configured path.
	OpenMarkers func(path string) (MarkerStore, io.Closer, error)
	Now         func() time.Time
}

// env is the per-invocation state shared by every command.
type env struct {
	cfg      config.ClientConfig
	out      io.Writer
	logger   zerolog.Logger
	api      *client.Client
	tokens   chat.TokenProvider
	identity chat.Identity
	markers  MarkerStore
	closer   io.Closer
	now      func() time.Time
	verbose  bool
}

// Run executes chatctl with args. Local resources opened by a command are
// released before Run returns.
func Run(ctx context.Context, opts Options, args []string) error {
	e, root := newRootCommand(opts)
	defer func() { _ = e.teardown() }()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(opts Options) (*env, *cobra.Command) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.LoadClient
	}
	if opts.OpenMarkers == nil {
		opts.OpenMarkers = openPebbleMarkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &env{out: opts.Out, now: opts.Now}

	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Terminal client for trailmate activity chats",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return e.setup(opts)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log engine diagnostics to stderr")

	root.AddCommand(
		newOpenCommand(e),
		newHistoryCommand(e),
		newWatchCommand(e),
		newSendCommand(e),
		newPollCommand(e),
		newEventCommand(e),
		newPayCommand(e),
		newContactCommand(e),
		newAttachCommand(e),
		newVoiceCommand(e),
		newVoteCommand(e),
		newRSVPCommand(e),
		newInviteCommand(e),
		newMarkersCommand(e),
	)

	return e, root
}

// Execute runs chatctl with os.Args and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Run(ctx, Options{}, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (e *env) setup(opts Options) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return err
	}
	e.cfg = cfg

	level := zerolog.WarnLevel
	if e.verbose {
		level = zerolog.DebugLevel
	}
	e.logger = zerolog.New(zerolog.ConsoleWriter{Out: opts.Err, NoColor: true}).Level(level).With().Timestamp().Logger()

	if cfg.Token != "" {
		e.tokens = auth.StaticToken(cfg.Token)
	} else {
		source, err := auth.NewJWTSource(cfg.JWTSecret, cfg.UserID, cfg.UserName, time.Hour)
		if err != nil {
			return err
		}
		e.tokens = source
	}
	e.identity = chat.Identity{UserID: cfg.UserID, Name: cfg.UserName}

	e.api, err = client.New(client.Config{
		BaseURL: cfg.BaseURL,
		Tokens:  e.tokens,
		Timeout: cfg.RequestTimeout,
		Logger:  e.logger,
	})
	if err != nil {
		return err
	}

	e.markers, e.closer, err = opts.OpenMarkers(cfg.MarkerPath)
	return err
}

func (e *env) teardown() error {
	if e.closer == nil {
		return nil
	}
	err := e.closer.Close()
	e.closer = nil
	return err
}

func openPebbleMarkers(path string) (MarkerStore, io.Closer, error) {
	store, err := markers.OpenPebble(path)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

func (e *env) notifier() chat.Notifier {
	return chat.NotifierFunc(func(n chat.Notice) {
		if n.Code == chat.NoticeInviteSent {
			return
		}
		fmt.Fprintf(e.out, "! %s\n", n.Message)
	})
}

func (e *env) gate() (*chat.Gate, error) {
	return chat.NewGate(chat.GateConfig{
		Store:    e.api,
		Joiner:   e.api,
		Markers:  e.markers,
		Tokens:   e.tokens,
		Identity: e.identity,
		Logger:   e.logger,
	})
}

// session opens activityID through the entry gate and loads its history.
// Chats behind a join prompt are refused unless the caller already joined.
func (e *env) session(ctx context.Context, activityID string) (*chat.SessionController, error) {
	gate, err := e.gate()
	if err != nil {
		return nil, err
	}
	_, access, err := gate.Check(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if access == chat.AccessJoinRequired {
		return nil, fmt.Errorf("not a participant of %s yet, run: chatctl open %s --join", activityID, activityID)
	}

	controller, err := chat.NewSessionController(chat.SessionConfig{
		Store:       e.api,
		Tokens:      e.tokens,
		Identity:    e.identity,
		Attachments: chat.NewAttachments(e.api, e.notifier(), e.logger),
		Notifier:    e.notifier(),
		Logger:      e.logger,
	})
	if err != nil {
		return nil, err
	}
	if _, _, err := controller.LoadSession(ctx, activityID); err != nil {
		return nil, err
	}
	return controller, nil
}
