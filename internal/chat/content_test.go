package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentOf(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want Content
	}{
		{
			name: "plain text",
			msg:  Message{Kind: KindText, Body: "hello world"},
			want: Text{Body: "hello world"},
		},
		{
			name: "jumbo emoji",
			msg:  Message{Kind: KindText, Body: "🔥"},
			want: Text{Body: "🔥", EmojiOnly: true},
		},
		{
			name: "image with caption",
			msg:  Message{Kind: KindImage, Body: "summit", AttachmentURL: "https://files.example.com/1.jpg"},
			want: Image{URL: "https://files.example.com/1.jpg", Caption: "summit"},
		},
		{
			name: "media kind wins over tag",
			msg:  Message{Kind: KindDocument, Body: "[POLL]{}", AttachmentURL: "https://files.example.com/a.pdf"},
			want: Document{URL: "https://files.example.com/a.pdf", Caption: "[POLL]{}"},
		},
		{
			name: "voice",
			msg:  Message{Kind: KindAudio, AttachmentURL: "https://files.example.com/v.webm"},
			want: Audio{URL: "https://files.example.com/v.webm"},
		},
		{
			name: "malformed poll",
			msg:  Message{Kind: KindText, Body: "[POLL]{not json"},
			want: Malformed{Tag: "[POLL]", Placeholder: "invalid poll data"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ContentOf(tc.msg))
		})
	}
}

func TestContentOfPayloads(t *testing.T) {
	payment, ok := ContentOf(Message{Kind: KindText, Body: `[PAYMENT]{"amount":150000,"reason":"porter"}`}).(PaymentContent)
	require.True(t, ok)
	require.Equal(t, 150000.0, payment.Amount)

	contact, ok := ContentOf(Message{Kind: KindText, Body: `[CONTACT]{"id":"u-3","name":"Dewi","avatarUrl":"https://a.example.com/d.png"}`}).(ContactContent)
	require.True(t, ok)
	require.Equal(t, "Dewi", contact.Name)

	event, ok := ContentOf(Message{Kind: KindText, Body: `[EVENT]{"title":"Camp","date":"2026-11-02"}`}).(EventContent)
	require.True(t, ok)
	require.Equal(t, "Camp", event.Title)
}
