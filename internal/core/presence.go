package core

import (
	"fmt"
	"math/rand/v2"
	"regexp"

	"github.com/rivo/uniseg"
)

const (
	// MaxUsernameLength is the display name limit in user-perceived characters.
	MaxUsernameLength = 10
	// MaxEmojiLength bounds the emoji display string in user-perceived characters.
	MaxEmojiLength = 8
	// DefaultEmoji is shown until a member picks another one.
	DefaultEmoji = "😊"
	// NoHost is the host id of a room without members.
	NoHost = "placeholder"
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Presence is a member's live display state within a room.
type Presence struct {
	Username  string
	Color     string
	Emoji     string
	IsDrawing bool
	IsTyping  bool
}

func newPresence() Presence {
	return Presence{
		Username: randomUsername(),
		Color:    randomColor(),
		Emoji:    DefaultEmoji,
	}
}

func randomUsername() string {
	return fmt.Sprintf("User%d", rand.IntN(900)+100)
}

func randomColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0xffffff))
}

func validColor(s string) bool {
	return colorPattern.MatchString(s)
}

// truncate cuts s to at most n grapheme clusters, so multi-codepoint
// emoji sequences are kept whole or dropped whole.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	rest, state := s, -1
	for i := 0; i < n && rest != ""; i++ {
		_, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
	}
	return s[:len(s)-len(rest)]
}
