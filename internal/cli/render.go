package cli

import (
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/noah-isme/trailmate-chat/internal/chat"
)

// renderer prints messages as one block each.
type renderer struct {
	out  io.Writer
	self string
	now  func() time.Time
}

func (r renderer) messages(messages []chat.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(r.out, "(no messages yet)")
		return
	}
	for _, msg := range messages {
		r.message(msg)
	}
}

func (r renderer) message(msg chat.Message) {
	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderID
	}
	if msg.SenderID == r.self && r.self != "" {
		sender += " (you)"
	}
	when := humanize.RelTime(msg.CreatedAt, r.now(), "ago", "from now")
	header := fmt.Sprintf("#%s %s, %s", msg.ID, sender, when)

	switch content := chat.ContentOf(msg).(type) {
	case chat.Text:
		if content.EmojiOnly {
			fmt.Fprintf(r.out, "%s\n    %s\n", header, strings.TrimSpace(content.Body))
			return
		}
		fmt.Fprintf(r.out, "%s\n  > %s\n", header, indent(html.UnescapeString(content.Body)))
	case chat.Image:
		fmt.Fprintf(r.out, "%s\n  [image] %s\n", header, content.URL)
		r.caption(content.Caption)
	case chat.Audio:
		fmt.Fprintf(r.out, "%s\n  [voice] %s\n", header, content.URL)
	case chat.Document:
		fmt.Fprintf(r.out, "%s\n  [document] %s\n", header, content.URL)
		r.caption(content.Caption)
	case chat.PollContent:
		fmt.Fprintf(r.out, "%s\n  [poll] %s\n", header, content.Question)
		for i, option := range content.Options {
			fmt.Fprintf(r.out, "    %d) %s\n", i, option)
		}
	case chat.EventContent:
		fmt.Fprintf(r.out, "%s\n  [event] %s on %s", header, content.Title, content.Date)
		if content.Time != "" {
			fmt.Fprintf(r.out, " at %s", content.Time)
		}
		fmt.Fprintln(r.out)
		r.caption(content.Description)
	case chat.PaymentContent:
		fmt.Fprintf(r.out, "%s\n  [payment] %s for %s\n", header, humanize.Commaf(content.Amount), content.Reason)
	case chat.ContactContent:
		fmt.Fprintf(r.out, "%s\n  [contact] %s (%s)\n", header, content.Name, content.ID)
	case chat.Malformed:
		fmt.Fprintf(r.out, "%s\n  %s\n", header, content.Placeholder)
	}
}

func (r renderer) caption(text string) {
	if strings.TrimSpace(text) != "" {
		fmt.Fprintf(r.out, "    %s\n", indent(text))
	}
}

func indent(text string) string {
	return strings.ReplaceAll(strings.TrimRight(text, "\n"), "\n", "\n    ")
}

func (r renderer) candidates(candidates []chat.InviteCandidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(r.out, "(no users found)")
		return
	}
	for _, candidate := range candidates {
		line := fmt.Sprintf("%-12s %-24s %s", candidate.ID, candidate.Name, candidate.Status)
		if candidate.DistanceKm != nil {
			line += fmt.Sprintf("  %s km away", humanize.FtoaWithDigits(*candidate.DistanceKm, 1))
		}
		fmt.Fprintln(r.out, strings.TrimRight(line, " "))
	}
}
