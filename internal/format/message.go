// Package format classifies PR actions and renders notification bodies.
package format

import (
	"fmt"
	"strings"

	"github.com/brettins/discord-pr-manager/internal/event"
)

// Status emoji mappings.
const (
	EmojiPending   = "🟢" // open / in progress
	EmojiMerged    = "🚀" // merged
	EmojiAbandoned = "❌" // closed without merge
	EmojiReview    = "🔍" // review activity
	EmojiComment   = "💬" // discussion comment
	EmojiInline    = "📝" // review-line comment
	EmojiDone      = "✅" // terminal-state reaction
	EmojiAck       = "👍" // command acknowledgment
)

// Embed colors per tier.
const (
	ColorPending   = 0x2ECC71 // green
	ColorMerged    = 0x9B59B6 // purple
	ColorAbandoned = 0xE74C3C // red
)

const (
	githubMarkURL = "https://github.githubassets.com/images/modules/logos_page/GitHub-Mark.png"

	maxDescriptionLen = 300
)

// Tier is the three-way status classification driving color and icon.
type Tier string

// Tiers.
const (
	TierPending   Tier = "pending"
	TierMerged    Tier = "merged"
	TierAbandoned Tier = "abandoned"
)

// TierFromAction maps an action string to its display tier. The mapping is
// case-insensitive and never fails: unrecognized actions classify as
// pending so the relay can always render something.
func TierFromAction(action string) Tier {
	switch strings.ToLower(action) {
	case "merged":
		return TierMerged
	case "closed", "deleted":
		return TierAbandoned
	default:
		// opened, open, reopened, ready_for_review, review_requested,
		// draft, and anything unrecognized
		return TierPending
	}
}

// Color returns the embed color for a tier.
func (t Tier) Color() int {
	switch t {
	case TierMerged:
		return ColorMerged
	case TierAbandoned:
		return ColorAbandoned
	default:
		return ColorPending
	}
}

// Emoji returns the status icon for a tier.
func (t Tier) Emoji() string {
	switch t {
	case TierMerged:
		return EmojiMerged
	case TierAbandoned:
		return EmojiAbandoned
	default:
		return EmojiPending
	}
}

// Field is a name/value pair rendered inside a notification.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Notification is the platform-neutral rendered body of a PR notification.
// Rendering is deterministic: the same PREvent always produces an identical
// Notification, so message edits can be compared byte for byte.
type Notification struct {
	Title        string
	Description  string
	URL          string
	FooterText   string
	ThumbnailURL string
	Fields       []Field
	Color        int
}

// Render builds the notification body for a primary PR event.
func Render(ev event.PREvent) Notification {
	tier := TierFromAction(ev.Action)

	n := Notification{
		Title:        fmt.Sprintf("PR #%s: %s", ev.Number, ev.Title),
		Description:  Truncate(ev.Description, maxDescriptionLen),
		URL:          CanonicalURL(ev),
		Color:        tier.Color(),
		FooterText:   fmt.Sprintf("PR #%s • %s", ev.Number, ev.Repository),
		ThumbnailURL: githubMarkURL,
	}

	n.Fields = append(n.Fields,
		Field{Name: "Repository", Value: ev.Repository, Inline: true},
		Field{Name: "Status", Value: tier.Emoji() + " " + capitalize(ev.Action), Inline: true},
	)
	if ev.Author != "" {
		n.Fields = append(n.Fields, Field{Name: "Author", Value: ev.Author, Inline: true})
	}

	return n
}

// CanonicalURL returns the event's URL, deriving the github.com PR URL from
// the repository name when the event carries none. Repositories without an
// owner separator yield no URL.
func CanonicalURL(ev event.PREvent) string {
	if ev.URL != "" {
		return ev.URL
	}
	if !strings.Contains(ev.Repository, "/") {
		return ""
	}
	return fmt.Sprintf("https://github.com/%s/pull/%s", ev.Repository, ev.Number)
}

// ThreadName returns the name for a PR's follow-up thread.
// Discord limits thread names to 100 characters; the repository name alone
// can exceed that, so the whole name is clamped, not just the title.
func ThreadName(ev event.PREvent) string {
	prefix := fmt.Sprintf("[%s] PR #%s ", ev.Repository, ev.Number)
	return Truncate(prefix+ev.Title, 100)
}

// ThreadMarker returns the initial message posted when a thread is opened.
func ThreadMarker(ev event.PREvent) string {
	return fmt.Sprintf("Follow-up activity for %s #%s lands in this thread.", ev.Repository, ev.Number)
}

// StatusLine returns the thread line posted when a tracked PR changes state.
func StatusLine(ev event.PREvent) string {
	tier := TierFromAction(ev.Action)
	return fmt.Sprintf("%s Status changed to **%s**", tier.Emoji(), ActionLabel(ev.Action))
}

// SecondaryLine returns the thread line for review and comment events.
func SecondaryLine(ev event.PREvent, kind event.Kind) string {
	var emoji, noun string
	switch kind {
	case event.KindReview:
		emoji, noun = EmojiReview, "Review"
	case event.KindReviewComment:
		emoji, noun = EmojiInline, "Review comment"
	default:
		emoji, noun = EmojiComment, "Comment"
	}

	var sb strings.Builder
	sb.WriteString(emoji)
	sb.WriteString(" ")
	sb.WriteString(noun)
	sb.WriteString(" ")
	sb.WriteString(ActionLabel(ev.Action))
	if ev.Author != "" {
		sb.WriteString(" by ")
		sb.WriteString(ev.Author)
	}
	if ev.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(Truncate(ev.Description, 200))
	}
	return sb.String()
}

// ActionLabel lowercases an action and converts snake_case to spaces.
func ActionLabel(action string) string {
	return strings.ReplaceAll(strings.ToLower(action), "_", " ")
}

// Truncate truncates a string to maxLen, adding "..." if truncated.
// A non-positive maxLen yields the empty string.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
