package dto

// UserSearchQuery filters the user directory.
type UserSearchQuery struct {
	Query string `query:"q" validate:"required,min=1,max=100"`
	Limit int    `query:"limit" validate:"omitempty,min=1,max=50"`
}

// CandidateResponse is a user that can be invited.
type CandidateResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AvatarURL  string   `json:"avatar_url"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// InviteRequest invites users to an activity.
type InviteRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=50,dive,required,max=64"`
}

// InviteResponse reports which users were invited.
type InviteResponse struct {
	Invited             []string `json:"invited"`
	AlreadyParticipants []string `json:"already_participants,omitempty"`
}
