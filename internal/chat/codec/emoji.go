package codec

import (
	"strings"

	"github.com/rivo/uniseg"
)

const maxJumboGraphemes = 3

// EmojiOnly reports whether text is 1 to 3 grapheme clusters made solely of
// emoji. Such bodies render jumbo without bubble chrome.
func EmojiOnly(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	count := 0
	graphemes := uniseg.NewGraphemes(trimmed)
	for graphemes.Next() {
		count++
		if count > maxJumboGraphemes {
			return false
		}
		if !isEmojiCluster(graphemes.Runes()) {
			return false
		}
	}

	return count > 0
}

func isEmojiCluster(runes []rune) bool {
	hasKeycap := false
	hasSelector := false
	for _, r := range runes {
		switch r {
		case 0x20E3:
			hasKeycap = true
		case 0xFE0F:
			hasSelector = true
		}
	}

	hasPictograph := false
	for _, r := range runes {
		switch {
		case isEmojiPresentation(r):
			hasPictograph = true
		case isTextPresentation(r):
			if !hasSelector {
				return false
			}
			hasPictograph = true
		case isEmojiComponent(r):
		case hasKeycap && isKeycapBase(r):
			hasPictograph = true
		default:
			return false
		}
	}

	return hasPictograph
}

// isEmojiPresentation covers pictographs that render as emoji on their own.
func isEmojiPresentation(r rune) bool {
	switch {
	case r >= 0x1F100 && r <= 0x1F1E5:
		return r == 0x1F18E || (r >= 0x1F191 && r <= 0x1F19A)
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	}

	for _, span := range emojiPresentationBMP {
		if r >= span[0] && r <= span[1] {
			return true
		}
	}
	return false
}

// emojiPresentationBMP lists the Emoji_Presentation code points below U+1F000.
var emojiPresentationBMP = [][2]rune{
	{0x231A, 0x231B}, {0x23E9, 0x23EC}, {0x23F0, 0x23F0}, {0x23F3, 0x23F3},
	{0x25FD, 0x25FE}, {0x2614, 0x2615}, {0x2648, 0x2653}, {0x267F, 0x267F},
	{0x2693, 0x2693}, {0x26A1, 0x26A1}, {0x26AA, 0x26AB}, {0x26BD, 0x26BE},
	{0x26C4, 0x26C5}, {0x26CE, 0x26CE}, {0x26D4, 0x26D4}, {0x26EA, 0x26EA},
	{0x26F2, 0x26F3}, {0x26F5, 0x26F5}, {0x26FA, 0x26FA}, {0x26FD, 0x26FD},
	{0x2705, 0x2705}, {0x270A, 0x270B}, {0x2728, 0x2728}, {0x274C, 0x274C},
	{0x274E, 0x274E}, {0x2753, 0x2755}, {0x2757, 0x2757}, {0x2795, 0x2797},
	{0x27B0, 0x27B0}, {0x27BF, 0x27BF}, {0x2B1B, 0x2B1C}, {0x2B50, 0x2B50},
	{0x2B55, 0x2B55},
}

// isTextPresentation covers emoji that render as plain symbols unless U+FE0F
// follows them.
func isTextPresentation(r rune) bool {
	switch {
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2194 && r <= 0x2199, r >= 0x21A9 && r <= 0x21AA:
		return true
	case r >= 0x23ED && r <= 0x23EF, r >= 0x23F1 && r <= 0x23F2, r >= 0x23F8 && r <= 0x23FA:
		return true
	case r >= 0x25AA && r <= 0x25AB, r >= 0x25FB && r <= 0x25FC:
		return true
	case r >= 0x2934 && r <= 0x2935, r >= 0x2B05 && r <= 0x2B07:
		return true
	case r >= 0x1F170 && r <= 0x1F171, r >= 0x1F17E && r <= 0x1F17F:
		return true
	}

	switch r {
	case 0x00A9, 0x00AE, 0x203C, 0x2049, 0x2122, 0x2139, 0x2328, 0x23CF, 0x24C2,
		0x25B6, 0x25C0, 0x3030, 0x303D, 0x3297, 0x3299:
		return true
	}
	return false
}

// isEmojiComponent covers joiners, variation selectors, skin tone modifiers
// and tag sequences that only ever appear inside an emoji cluster.
func isEmojiComponent(r rune) bool {
	switch {
	case r == 0x200D, r == 0xFE0F, r == 0xFE0E, r == 0x20E3:
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r >= 0xE0020 && r <= 0xE007F:
		return true
	}
	return false
}

func isKeycapBase(r rune) bool {
	return (r >= '0' && r <= '9') || r == '#' || r == '*'
}
