package events

import (
	"time"

	"github.com/google/uuid"
)

// ActivityInvited is the routing key and type of invitation events.
const ActivityInvited = "activity.invited.v1"

// Meta identifies an emitted event.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Producer      string    `json:"producer,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Envelope wraps an event payload with its metadata.
type Envelope struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data"`
}

// InvitedData is the payload of ActivityInvited.
type InvitedData struct {
	ActivityID string   `json:"activity_id"`
	InviterID  string   `json:"inviter_id"`
	InviteeIDs []string `json:"invitee_ids"`
}

// NewEnvelope stamps data with a fresh id and the current time.
func NewEnvelope(eventType, producer, correlationID string, data interface{}) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			Type:          eventType,
			Time:          time.Now().UTC(),
			Producer:      producer,
			CorrelationID: correlationID,
		},
		Data: data,
	}
}
