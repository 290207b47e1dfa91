package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/models"
	"github.com/noah-isme/trailmate-chat/internal/observability"
	"github.com/noah-isme/trailmate-chat/internal/repository"
	"github.com/noah-isme/trailmate-chat/pkg/events"
)

const (
	actionChatInvited = models.ActionChatInvited
	eventProducer     = "trailmate-chat"
)

// ErrInviteSelf indicates the caller tried to invite only themselves.
var ErrInviteSelf = errors.New("cannot invite yourself")

// InviteService records activity invitations and announces them.
type InviteService interface {
	Invite(ctx context.Context, actor ChatActor, activityID, correlationID string, req dto.InviteRequest) (dto.InviteResponse, error)
}

type inviteService struct {
	invitations repository.InvitationRepository
	chats       repository.ChatRepository
	activity    ActivityRecorder
	publisher   events.Publisher
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewInviteService constructs the invitation service. publisher may be nil.
func NewInviteService(invitations repository.InvitationRepository, chats repository.ChatRepository, activity ActivityRecorder, publisher events.Publisher, validate *validator.Validate, logger zerolog.Logger) InviteService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &inviteService{
		invitations: invitations,
		chats:       chats,
		activity:    activity,
		publisher:   publisher,
		validator:   validate,
		logger:      logger.With().Str("component", "invite_service").Logger(),
	}
}

func (s *inviteService) Invite(ctx context.Context, actor ChatActor, activityID, correlationID string, req dto.InviteRequest) (dto.InviteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		observability.Invites().WithLabelValues("invalid").Inc()
		return dto.InviteResponse{}, err
	}
	activityID = strings.TrimSpace(activityID)

	var session *models.ChatSession
	if found, err := s.chats.FindSessionByActivity(ctx, activityID); err == nil {
		session = &found
	} else if !errors.Is(err, repository.ErrNotFound) {
		observability.Invites().WithLabelValues("error").Inc()
		return dto.InviteResponse{}, err
	}

	response := dto.InviteResponse{Invited: []string{}}
	pending := make([]models.Invitation, 0, len(req.UserIDs))
	seen := make(map[string]struct{}, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		userID := strings.TrimSpace(raw)
		if userID == "" || userID == actor.UserID {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		if session != nil && session.HasParticipant(userID) {
			response.AlreadyParticipants = append(response.AlreadyParticipants, userID)
			continue
		}
		pending = append(pending, models.Invitation{
			ActivityID: activityID,
			InviteeID:  userID,
			InviterID:  actor.UserID,
			Status:     "pending",
		})
	}

	if len(pending) == 0 && len(response.AlreadyParticipants) == 0 {
		observability.Invites().WithLabelValues("invalid").Inc()
		return dto.InviteResponse{}, ErrInviteSelf
	}

	// Re-inviting is accepted; only new rows are announced.
	created, err := s.invitations.CreateMissing(ctx, pending)
	if err != nil {
		observability.Invites().WithLabelValues("error").Inc()
		return dto.InviteResponse{}, err
	}
	for _, invitation := range pending {
		response.Invited = append(response.Invited, invitation.InviteeID)
	}

	if len(created) > 0 {
		fresh := make([]string, 0, len(created))
		for _, invitation := range created {
			fresh = append(fresh, invitation.InviteeID)
		}
		s.announce(ctx, actor, activityID, correlationID, fresh)
	}

	observability.Invites().WithLabelValues("sent").Add(float64(len(response.Invited)))
	return response, nil
}

func (s *inviteService) announce(ctx context.Context, actor ChatActor, activityID, correlationID string, invitees []string) {
	if s.activity != nil {
		if err := s.activity.Record(ctx, ActivityEntry{
			ActivityID: activityID,
			ActorID:    actor.UserID,
			Action:     actionChatInvited,
			Metadata:   map[string]interface{}{"invitee_ids": invitees},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record invitation activity")
		}
	}

	envelope := events.NewEnvelope(events.ActivityInvited, eventProducer, correlationID, events.InvitedData{
		ActivityID: activityID,
		InviterID:  actor.UserID,
		InviteeIDs: invitees,
	})
	if err := s.publisher.Publish(ctx, events.ActivityInvited, envelope); err != nil {
		s.logger.Warn().Err(err).Str("activity_id", activityID).Msg("failed to publish invitation event")
	}
}
