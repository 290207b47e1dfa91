package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/trailmate-chat/internal/models"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ChatRepository persists chat sessions and their messages.
type ChatRepository interface {
	FindSessionByActivity(ctx context.Context, activityID string) (models.ChatSession, error)
	FindSessionByID(ctx context.Context, id uint) (models.ChatSession, error)
	EnsureSession(ctx context.Context, session *models.ChatSession) (bool, error)
	AddParticipant(ctx context.Context, activityID, userID string) (models.ChatSession, error)
	ListMessages(ctx context.Context, chatID uint) ([]models.ChatMessage, error)
	CreateMessage(ctx context.Context, message *models.ChatMessage) error
	FindMessage(ctx context.Context, id uint) (models.ChatMessage, error)
	UpdateMessageBody(ctx context.Context, id uint, body string) (models.ChatMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) FindSessionByActivity(ctx context.Context, activityID string) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).Where("activity_id = ?", activityID).First(&session).Error
	return session, notFound(err)
}

func (r *chatRepository) FindSessionByID(ctx context.Context, id uint) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).First(&session, id).Error
	return session, notFound(err)
}

// EnsureSession inserts session unless one already exists for its activity.
// session is overwritten with the stored row; the flag reports creation.
func (r *chatRepository) EnsureSession(ctx context.Context, session *models.ChatSession) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "activity_id"}}, DoNothing: true}).
		Create(session)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	stored, err := r.FindSessionByActivity(ctx, session.ActivityID)
	if err != nil {
		return false, err
	}
	*session = stored
	return false, nil
}

// AddParticipant appends userID under a row lock so concurrent joins on the
// same session do not overwrite each other.
func (r *chatRepository) AddParticipant(ctx context.Context, activityID, userID string) (models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("activity_id = ?", activityID).
			First(&session).Error
		if err != nil {
			return err
		}
		if session.HasParticipant(userID) {
			return nil
		}
		session.ParticipantIDs = append(session.ParticipantIDs, userID)
		return tx.Model(&session).Update("participant_ids", session.ParticipantIDs).Error
	})
	return session, notFound(err)
}

func (r *chatRepository) ListMessages(ctx context.Context, chatID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Order("id ASC").Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *chatRepository) FindMessage(ctx context.Context, id uint) (models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).First(&message, id).Error
	return message, notFound(err)
}

func (r *chatRepository) UpdateMessageBody(ctx context.Context, id uint, body string) (models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&message, id).Error; err != nil {
			return err
		}
		message.Body = body
		return tx.Model(&message).Update("body", body).Error
	})
	return message, notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
