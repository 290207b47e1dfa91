package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/auth"
	"github.com/noah-isme/trailmate-chat/internal/observability"
)

// Access is the outcome of the entry gate.
type Access string

const (
	AccessOpen         Access = "open"
	AccessJoinRequired Access = "join_required"
)

// CanOpen reports whether userID may see the transcript without confirming a
// join first. The store remains the authority on reads and writes.
func CanOpen(session Session, userID string, joined bool) bool {
	if joined {
		return true
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	return session.CreatorID == userID || session.HasParticipant(userID)
}

// GateConfig wires a Gate.
type GateConfig struct {
	Store    Store
	Joiner   Joiner
	Markers  JoinMarkers
	Tokens   TokenProvider
	Identity Identity
	Logger   zerolog.Logger
}

// Gate decides whether a chat opens directly or behind a join confirmation.
type Gate struct {
	store    Store
	joiner   Joiner
	markers  JoinMarkers
	tokens   TokenProvider
	identity Identity
	logger   zerolog.Logger
}

// NewGate constructs an entry gate. Store and Markers are required.
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("chat store must be provided")
	}
	if cfg.Markers == nil {
		return nil, fmt.Errorf("join markers must be provided")
	}
	return &Gate{
		store:    cfg.Store,
		joiner:   cfg.Joiner,
		markers:  cfg.Markers,
		tokens:   cfg.Tokens,
		identity: cfg.Identity,
		logger:   cfg.Logger.With().Str("component", "chat_gate").Logger(),
	}, nil
}

// Check fetches the session for activityID and applies the access rule.
func (g *Gate) Check(ctx context.Context, activityID string) (Session, Access, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return Session{}, "", fmt.Errorf("%w: activity id required", ErrValidation)
	}

	ctx, err := withToken(ctx, g.tokens)
	if err != nil {
		return Session{}, "", err
	}

	session, err := g.store.GetSession(ctx, activityID)
	if err != nil {
		return Session{}, "", err
	}

	joined, err := g.markers.HasJoined(ctx, activityID)
	if err != nil {
		g.logger.Warn().Err(err).Str("activity_id", activityID).Msg("failed to read join marker")
		joined = false
	}

	if CanOpen(session, g.identity.UserID, joined) {
		return session, AccessOpen, nil
	}
	return session, AccessJoinRequired, nil
}

// ConfirmJoin adds the caller to the chat and remembers the join locally.
func (g *Gate) ConfirmJoin(ctx context.Context, activityID string) (Session, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return Session{}, fmt.Errorf("%w: activity id required", ErrValidation)
	}
	if g.joiner == nil {
		return Session{}, fmt.Errorf("%w: joining is not configured", ErrValidation)
	}

	ctx, err := withToken(ctx, g.tokens)
	if err != nil {
		return Session{}, err
	}

	session, err := g.joiner.JoinSession(ctx, activityID)
	if err != nil {
		return Session{}, err
	}

	if err := g.markers.MarkJoined(ctx, activityID); err != nil {
		g.logger.Warn().Err(err).Str("activity_id", activityID).Msg("failed to persist join marker")
	}

	g.logger.Info().Str("activity_id", activityID).Str("chat_id", session.ID).Msg("joined activity chat")
	return session, nil
}

// CandidateStatus is derived per candidate for the invite surface.
type CandidateStatus string

const (
	StatusAlreadyParticipant CandidateStatus = "already_participant"
	StatusInvitePending      CandidateStatus = "invite_pending"
	StatusInvitable          CandidateStatus = "invitable"
)

// InviteCandidate is a candidate plus its derived status.
type InviteCandidate struct {
	Candidate
	Status CandidateStatus
}

// ParticipantSource exposes the participants of the loaded chat.
type ParticipantSource interface {
	Participants() []string
}

// InviterConfig wires an Inviter.
type InviterConfig struct {
	ActivityID   string
	Directory    UserDirectory
	Invites      ActivityInviter
	Participants ParticipantSource
	Tokens       TokenProvider
	Identity     Identity
	Notifier     Notifier
	Logger       zerolog.Logger
}

// Inviter drives the candidate search and invite flow for one activity.
// Successful invites are remembered for the lifetime of the Inviter and are
// never re-queried from the server.
type Inviter struct {
	activityID   string
	directory    UserDirectory
	invites      ActivityInviter
	participants ParticipantSource
	tokens       TokenProvider
	identity     Identity
	notifier     Notifier
	logger       zerolog.Logger

	mu      sync.Mutex
	friends []Candidate
	pending map[string]struct{}
	invited map[string]struct{}
}

// NewInviter constructs an inviter for cfg.ActivityID.
func NewInviter(cfg InviterConfig) (*Inviter, error) {
	if strings.TrimSpace(cfg.ActivityID) == "" {
		return nil, fmt.Errorf("activity id must be provided")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("user directory must be provided")
	}
	if cfg.Invites == nil {
		return nil, fmt.Errorf("activity inviter must be provided")
	}
	return &Inviter{
		activityID:   strings.TrimSpace(cfg.ActivityID),
		directory:    cfg.Directory,
		invites:      cfg.Invites,
		participants: cfg.Participants,
		tokens:       cfg.Tokens,
		identity:     cfg.Identity,
		notifier:     notifierOrNop(cfg.Notifier),
		logger:       cfg.Logger.With().Str("component", "chat_inviter").Logger(),
		pending:      make(map[string]struct{}),
		invited:      make(map[string]struct{}),
	}, nil
}

// LoadFriends fetches the caller's friend list, which backs the invite
// surface until a query is entered.
func (i *Inviter) LoadFriends(ctx context.Context) ([]InviteCandidate, error) {
	ctx, err := withToken(ctx, i.tokens)
	if err != nil {
		return nil, err
	}

	friends, err := i.directory.Friends(ctx)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.friends = append([]Candidate(nil), friends...)
	i.mu.Unlock()

	return i.decorate(friends), nil
}

// SearchCandidates searches users by name substring. An empty query makes no
// network call and returns the loaded friends.
func (i *Inviter) SearchCandidates(ctx context.Context, query string) ([]InviteCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		i.mu.Lock()
		friends := append([]Candidate(nil), i.friends...)
		i.mu.Unlock()
		return i.decorate(friends), nil
	}

	ctx, err := withToken(ctx, i.tokens)
	if err != nil {
		return nil, err
	}

	found, err := i.directory.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return i.decorate(found), nil
}

// Invite invites one candidate. A second call for the same candidate while
// the first is pending fails with ErrInviteInFlight.
func (i *Inviter) Invite(ctx context.Context, candidateID string) error {
	candidateID = strings.TrimSpace(candidateID)
	if candidateID == "" {
		return fmt.Errorf("%w: candidate id required", ErrValidation)
	}

	i.mu.Lock()
	if _, busy := i.pending[candidateID]; busy {
		i.mu.Unlock()
		observability.EngineInvites().WithLabelValues("duplicate").Inc()
		return ErrInviteInFlight
	}
	i.pending[candidateID] = struct{}{}
	i.mu.Unlock()

	err := i.send(ctx, candidateID)

	i.mu.Lock()
	delete(i.pending, candidateID)
	if err == nil {
		i.invited[candidateID] = struct{}{}
	}
	i.mu.Unlock()

	if err != nil {
		observability.EngineInvites().WithLabelValues("failed").Inc()
		i.logger.Warn().Err(err).Str("candidate_id", candidateID).Msg("invite failed")
		i.notifier.Notify(Notice{Code: NoticeInviteFailed, Message: "invitation could not be sent", Err: err})
		return err
	}

	observability.EngineInvites().WithLabelValues("sent").Inc()
	i.notifier.Notify(Notice{Code: NoticeInviteSent, Message: "invitation sent"})
	return nil
}

// Status derives the candidate's status from the chat participants and the
// invites sent through this Inviter.
func (i *Inviter) Status(candidateID string) CandidateStatus {
	participants := i.participantSet()

	i.mu.Lock()
	defer i.mu.Unlock()
	return i.statusLocked(candidateID, participants)
}

func (i *Inviter) send(ctx context.Context, candidateID string) error {
	ctx, err := withToken(ctx, i.tokens)
	if err != nil {
		return err
	}
	return i.invites.Invite(ctx, i.activityID, []string{candidateID})
}

func (i *Inviter) decorate(candidates []Candidate) []InviteCandidate {
	participants := i.participantSet()

	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]InviteCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == "" || candidate.ID == i.identity.UserID {
			continue
		}
		out = append(out, InviteCandidate{
			Candidate: candidate,
			Status:    i.statusLocked(candidate.ID, participants),
		})
	}
	return out
}

func (i *Inviter) statusLocked(candidateID string, participants map[string]struct{}) CandidateStatus {
	if _, ok := participants[candidateID]; ok {
		return StatusAlreadyParticipant
	}
	if _, ok := i.invited[candidateID]; ok {
		return StatusInvitePending
	}
	return StatusInvitable
}

func (i *Inviter) participantSet() map[string]struct{} {
	set := make(map[string]struct{})
	if i.participants == nil {
		return set
	}
	for _, id := range i.participants.Participants() {
		set[id] = struct{}{}
	}
	return set
}

func withToken(ctx context.Context, tokens TokenProvider) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tokens == nil {
		return ctx, nil
	}
	token, err := tokens.Token(ctx)
	if err != nil {
		return ctx, fmt.Errorf("resolve auth token: %w", err)
	}
	return auth.WithToken(ctx, token), nil
}
