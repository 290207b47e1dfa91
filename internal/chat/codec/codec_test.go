package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodePollWireFormat(t *testing.T) {
	body := Encode(Poll{Question: "Lunch?", Options: []string{"Pizza", "Sushi"}})
	require.Equal(t, `[POLL]{"question":"Lunch?","options":["Pizza","Sushi"]}`, body)
}

func TestEncodeKeepsHTMLCharacters(t *testing.T) {
	body := Encode(Event{Title: "Tapas & wine", Date: "2026-10-20", Time: "19:00", Description: "<bring cash>"})
	require.Equal(t, `[EVENT]{"title":"Tapas & wine","date":"2026-10-20","time":"19:00","description":"<bring cash>"}`, body)
}

func TestRoundTrip(t *testing.T) {
	payloads := []Payload{
		Poll{Question: "Which trail?", Options: []string{"Ridge", "Lake", "Summit"}},
		Event{Title: "Sunrise hike", Date: "2026-11-02", Time: "05:30", Description: "Meet at the car park"},
		PaymentRequest{Amount: 42.5, Reason: "Cabin deposit"},
		ContactCard{ID: "user-9", Name: "Ana", AvatarURL: "https://cdn.example.com/ana.png"},
	}

	for _, payload := range payloads {
		payload := payload
		t.Run(payload.Tag().Label(), func(t *testing.T) {
			result := Decode(Encode(payload))
			require.Equal(t, StatusPayload, result.Status)
			require.Equal(t, payload.Tag(), result.Tag)
			require.Equal(t, payload, result.Payload)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]Tag{
		"[POLL]{not json":                         TagPoll,
		`[POLL]{"question":"x","options":["a"]}`:  TagPoll,
		`[POLL]["a","b"]`:                         TagPoll,
		`[EVENT]{"title":"x"}`:                    TagEvent,
		`[PAYMENT]{"amount":"ten","reason":"x"}`:  TagPayment,
		`[CONTACT]{"id":7,"name":"x"}`:            TagContact,
		`[CONTACT]{"id":"7","name":"x"} trailing`: TagContact,
		"[PAYMENT]":                               TagPayment,
	}

	for body, tag := range cases {
		require.NotPanics(t, func() {
			result := Decode(body)
			require.True(t, result.IsMalformed(), body)
			require.Equal(t, tag, result.Tag)
			require.Equal(t, "invalid "+tag.Label()+" data", result.Placeholder())
		})
	}
}

func TestDecodePlain(t *testing.T) {
	result := Decode("hello world")
	require.True(t, result.IsPlain())
	require.Equal(t, "hello world", result.Text)

	// a tag that is not at the very start is just text
	result = Decode(` [POLL]{"question":"x","options":["a","b"]}`)
	require.True(t, result.IsPlain())
}

func TestEncodeNaNAmountDecodesMalformed(t *testing.T) {
	body := Encode(PaymentRequest{Amount: math.NaN(), Reason: "x"})
	require.Equal(t, "[PAYMENT]", body)
	require.True(t, Decode(body).IsMalformed())
}

func TestHasTag(t *testing.T) {
	tag, ok := HasTag("[EVENT]{broken")
	require.True(t, ok)
	require.Equal(t, TagEvent, tag)

	_, ok = HasTag("plain")
	require.False(t, ok)
}

func TestEmojiOnly(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"🔥", true},
		{"🔥🔥🔥", true},
		{"  🎉🎉 ", true},
		{"🔥🔥🔥🔥", false},
		{"hi 🔥", false},
		{"👩‍👩‍👧‍👦", true},
		{"👍🏽👍🏽👍🏽", true},
		{"🇯🇵", true},
		{"1️⃣", true},
		{"1", false},
		{"", false},
		{"   ", false},
		{"❤️", true},
		{"❤", false},
		{"🔥 🔥", false},
		{"→", false},
		{"■", false},
		{"™", false},
		{"™️", true},
		{"⬅️", true},
		{"⭐", true},
		{"⚡⚡", true},
		{"☀︎", false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, EmojiOnly(tc.text), "text %q", tc.text)
	}
}
