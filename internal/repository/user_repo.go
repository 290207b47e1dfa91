package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/trailmate-chat/internal/models"
)

// UserRepository reads the user directory.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SearchByName(ctx context.Context, query string, limit int) ([]models.User, error)
	Friends(ctx context.Context, userID string) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	return user, notFound(err)
}

func (r *userRepository) SearchByName(ctx context.Context, query string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"

	var users []models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? ESCAPE '\\'", pattern).
		Order("name ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Friends(ctx context.Context, userID string) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN friendships ON friendships.friend_id = users.id").
		Where("friendships.user_id = ?", userID).
		Order("users.name ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
