package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/trailmate-chat/internal/models"
)

// InvitationRepository persists activity invitations.
type InvitationRepository interface {
	CreateMissing(ctx context.Context, invitations []models.Invitation) ([]models.Invitation, error)
	ListByActivity(ctx context.Context, activityID string) ([]models.Invitation, error)
}

type invitationRepository struct {
	db *gorm.DB
}

// NewInvitationRepository constructs an invitation repository.
func NewInvitationRepository(db *gorm.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

// CreateMissing inserts invitations that do not exist yet and returns the
// ones that were actually created.
func (r *invitationRepository) CreateMissing(ctx context.Context, invitations []models.Invitation) ([]models.Invitation, error) {
	created := make([]models.Invitation, 0, len(invitations))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, invitation := range invitations {
			item := invitation
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "activity_id"}, {Name: "invitee_id"}},
				DoNothing: true,
			}).Create(&item)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				created = append(created, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *invitationRepository) ListByActivity(ctx context.Context, activityID string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	if err := r.db.WithContext(ctx).Where("activity_id = ?", activityID).Order("id ASC").Find(&invitations).Error; err != nil {
		return nil, err
	}
	return invitations, nil
}
