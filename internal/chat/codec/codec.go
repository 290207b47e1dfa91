// Package codec multiplexes structured chat payloads through the plain text
// body of a message.
//
// A payload is serialised as one of four ASCII tags immediately followed by a
// JSON object, e.g. `[POLL]{"question":"Lunch?","options":["Pizza","Sushi"]}`.
// Anything else is plain text. Decoding never fails: a tagged body that does
// not parse, or parses to the wrong shape, decodes as Malformed.
package codec

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Tag is the literal prefix identifying a payload kind inside a message body.
type Tag string

const (
	TagPoll    Tag = "[POLL]"
	TagEvent   Tag = "[EVENT]"
	TagPayment Tag = "[PAYMENT]"
	TagContact Tag = "[CONTACT]"
)

// priority is the order in which tags are tried by Decode.
var priority = []Tag{TagPoll, TagEvent, TagPayment, TagContact}

// Tags returns the known tags in decode priority order.
func Tags() []Tag {
	out := make([]Tag, len(priority))
	copy(out, priority)
	return out
}

// Label is the lowercase human name of the tag ("poll", "event", ...).
func (t Tag) Label() string {
	switch t {
	case TagPoll:
		return "poll"
	case TagEvent:
		return "event"
	case TagPayment:
		return "payment"
	case TagContact:
		return "contact"
	default:
		return "unknown"
	}
}

// Payload is a structured value carried inside a message body.
type Payload interface {
	Tag() Tag
}

// Poll asks participants to pick among at least two options.
type Poll struct {
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options" validate:"min=2,dive,required"`
}

// Event proposes a meetup inside the activity.
type Event struct {
	Title       string `json:"title" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time"`
	Description string `json:"description"`
}

// PaymentRequest asks participants to pay their share of something.
type PaymentRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Reason string  `json:"reason" validate:"required"`
}

// ContactCard shares another user's profile.
type ContactCard struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	AvatarURL string `json:"avatarUrl"`
}

func (Poll) Tag() Tag           { return TagPoll }
func (Event) Tag() Tag          { return TagEvent }
func (PaymentRequest) Tag() Tag { return TagPayment }
func (ContactCard) Tag() Tag    { return TagContact }

// Status classifies the outcome of Decode.
type Status int

const (
	StatusPlain Status = iota
	StatusPayload
	StatusMalformed
)

// Result is the outcome of decoding a message body.
type Result struct {
	Status  Status
	Tag     Tag
	Payload Payload
	Text    string
}

// IsPlain reports whether the body carried no tag.
func (r Result) IsPlain() bool { return r.Status == StatusPlain }

// IsMalformed reports whether the body carried a tag with unusable data.
func (r Result) IsMalformed() bool { return r.Status == StatusMalformed }

// Placeholder is the inline text rendered instead of a malformed payload.
func (r Result) Placeholder() string {
	return Placeholder(r.Tag)
}

// Placeholder returns the "invalid <kind> data" notice for tag.
func Placeholder(tag Tag) string {
	return "invalid " + tag.Label() + " data"
}

// Encode serialises payload as its tag followed by compact JSON.
//
// A payload that cannot be marshalled (a NaN amount) yields the bare tag, which
// decodes as Malformed.
func Encode(payload Payload) string {
	if payload == nil {
		return ""
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return string(payload.Tag())
	}

	return string(payload.Tag()) + strings.TrimRight(buf.String(), "\n")
}

// Decode recovers the payload carried by body.
func Decode(body string) Result {
	for _, tag := range priority {
		if !strings.HasPrefix(body, string(tag)) {
			continue
		}

		raw := []byte(body[len(tag):])
		payload, ok := decodeTagged(tag, raw)
		if !ok {
			return Result{Status: StatusMalformed, Tag: tag, Text: body}
		}
		return Result{Status: StatusPayload, Tag: tag, Payload: payload, Text: body}
	}

	return Result{Status: StatusPlain, Text: body}
}

// HasTag reports whether body starts with any payload tag, valid or not.
func HasTag(body string) (Tag, bool) {
	for _, tag := range priority {
		if strings.HasPrefix(body, string(tag)) {
			return tag, true
		}
	}
	return "", false
}

func decodeTagged(tag Tag, raw []byte) (payload Payload, ok bool) {
	defer func() {
		if recover() != nil {
			payload, ok = nil, false
		}
	}()

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, false
	}
	if err := schemaFor(tag).Validate(generic); err != nil {
		return nil, false
	}

	switch tag {
	case TagPoll:
		var poll Poll
		if err := json.Unmarshal(raw, &poll); err != nil {
			return nil, false
		}
		return poll, true
	case TagEvent:
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, false
		}
		return event, true
	case TagPayment:
		var payment PaymentRequest
		if err := json.Unmarshal(raw, &payment); err != nil {
			return nil, false
		}
		return payment, true
	case TagContact:
		var contact ContactCard
		if err := json.Unmarshal(raw, &contact); err != nil {
			return nil, false
		}
		return contact, true
	default:
		return nil, false
	}
}
