package chat

import (
	"github.com/noah-isme/trailmate-chat/internal/chat/codec"
	"github.com/noah-isme/trailmate-chat/internal/observability"
)

// Content is what a message means to the reader. Exactly one of the concrete
// types below is returned by ContentOf.
type Content interface {
	isContent()
}

// Text is a plain text body.
type Text struct {
	Body      string
	EmojiOnly bool
}

// Image is a picture attachment with an optional caption.
type Image struct {
	URL     string
	Caption string
}

// Audio is a voice message.
type Audio struct {
	URL string
}

// Document is any other attached file.
type Document struct {
	URL     string
	Caption string
}

// PollContent is a decoded poll.
type PollContent struct{ codec.Poll }

// EventContent is a decoded event proposal.
type EventContent struct{ codec.Event }

// PaymentContent is a decoded payment request.
type PaymentContent struct{ codec.PaymentRequest }

// ContactContent is a decoded contact card.
type ContactContent struct{ codec.ContactCard }

// Malformed is a tagged body whose data could not be read. Render
// Placeholder inline instead of the payload.
type Malformed struct {
	Tag         codec.Tag
	Placeholder string
}

func (Text) isContent()           {}
func (Image) isContent()          {}
func (Audio) isContent()          {}
func (Document) isContent()       {}
func (PollContent) isContent()    {}
func (EventContent) isContent()   {}
func (PaymentContent) isContent() {}
func (ContactContent) isContent() {}
func (Malformed) isContent()      {}

// ContentOf maps a transport message onto its content. It never panics.
func ContentOf(msg Message) Content {
	switch msg.Kind {
	case KindImage:
		return Image{URL: msg.AttachmentURL, Caption: msg.Body}
	case KindAudio:
		return Audio{URL: msg.AttachmentURL}
	case KindDocument:
		return Document{URL: msg.AttachmentURL, Caption: msg.Body}
	}

	result := codec.Decode(msg.Body)
	switch result.Status {
	case codec.StatusMalformed:
		observability.EngineMalformedPayloads().WithLabelValues(result.Tag.Label()).Inc()
		return Malformed{Tag: result.Tag, Placeholder: result.Placeholder()}
	case codec.StatusPayload:
		switch payload := result.Payload.(type) {
		case codec.Poll:
			return PollContent{payload}
		case codec.Event:
			return EventContent{payload}
		case codec.PaymentRequest:
			return PaymentContent{payload}
		case codec.ContactCard:
			return ContactContent{payload}
		}
	}

	return Text{Body: msg.Body, EmojiOnly: codec.EmojiOnly(msg.Body)}
}
