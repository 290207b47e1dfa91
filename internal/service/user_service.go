package service

import (
	"context"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/trailmate-chat/internal/dto"
	"github.com/noah-isme/trailmate-chat/internal/models"
	"github.com/noah-isme/trailmate-chat/internal/repository"
)

const earthRadiusKm = 6371.0

// UserService searches the user directory for invite candidates.
type UserService interface {
	Search(ctx context.Context, callerID string, query dto.UserSearchQuery) ([]dto.CandidateResponse, error)
	Friends(ctx context.Context, callerID string) ([]dto.CandidateResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the user directory service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Search(ctx context.Context, callerID string, query dto.UserSearchQuery) ([]dto.CandidateResponse, error) {
	query.Query = strings.TrimSpace(query.Query)
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	users, err := s.repo.SearchByName(ctx, query.Query, query.Limit)
	if err != nil {
		return nil, err
	}
	return s.candidates(ctx, callerID, users), nil
}

func (s *userService) Friends(ctx context.Context, callerID string) ([]dto.CandidateResponse, error) {
	users, err := s.repo.Friends(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return s.candidates(ctx, callerID, users), nil
}

func (s *userService) candidates(ctx context.Context, callerID string, users []models.User) []dto.CandidateResponse {
	var origin *models.User
	if callerID != "" {
		if caller, err := s.repo.FindByID(ctx, callerID); err == nil {
			origin = &caller
		} else {
			s.logger.Debug().Err(err).Str("user_id", callerID).Msg("caller location unavailable")
		}
	}

	out := make([]dto.CandidateResponse, 0, len(users))
	for _, user := range users {
		candidate := dto.CandidateResponse{ID: user.ID, Name: user.Name, AvatarURL: user.AvatarURL}
		if origin != nil {
			candidate.DistanceKm = distanceKm(*origin, user)
		}
		out = append(out, candidate)
	}
	return out
}

// distanceKm is the great-circle distance between two located users,
// rounded to one decimal.
func distanceKm(a, b models.User) *float64 {
	if a.Latitude == nil || a.Longitude == nil || b.Latitude == nil || b.Longitude == nil {
		return nil
	}

	lat1 := *a.Latitude * math.Pi / 180
	lat2 := *b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (*b.Longitude - *a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	km := 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
	km = math.Round(km*10) / 10
	return &km
}
