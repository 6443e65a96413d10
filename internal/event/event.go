// Package event normalizes PR lifecycle events from heterogeneous sources.
package event

import (
	"regexp"
	"strings"
)

// GitHub webhook event types handled by the relay.
const (
	TypePing          = "ping"
	TypePullRequest   = "pull_request"
	TypeReview        = "pull_request_review"
	TypeIssueComment  = "issue_comment"
	TypeReviewComment = "pull_request_review_comment"
)

// Kind distinguishes primary notifications from thread-only follow-ups.
type Kind int

// Event kinds.
const (
	KindPrimary Kind = iota
	KindReview
	KindComment
	KindReviewComment
)

func (k Kind) String() string {
	switch k {
	case KindPrimary:
		return "primary"
	case KindReview:
		return "review"
	case KindComment:
		return "comment"
	case KindReviewComment:
		return "review_comment"
	default:
		return "unknown"
	}
}

// KindForType maps a webhook event type to its Kind.
// The second return is false for event types the relay does not process.
func KindForType(eventType string) (Kind, bool) {
	switch eventType {
	case TypePullRequest:
		return KindPrimary, true
	case TypeReview:
		return KindReview, true
	case TypeIssueComment:
		return KindComment, true
	case TypeReviewComment:
		return KindReviewComment, true
	default:
		return 0, false
	}
}

// PREvent is the normalized description of one PR lifecycle change.
// Number is kept as a string to preserve formatting of exotic identifiers.
type PREvent struct {
	Repository  string
	Number      string
	Action      string
	Title       string
	Description string
	URL         string
	Author      string
}

// Valid reports whether the event carries enough identity to be keyed.
func (e PREvent) Valid() bool {
	return e.Repository != "" && e.Number != ""
}

// prPattern matches the bracketed notification format:
//	[owner/repo] Pull request opened: #42 Some description
var prPattern = regexp.MustCompile(`\[(.*?)\]\s+Pull request (\w+):\s+#(\d+)\s+(.*)`)

// parsePattern extracts the four capture groups verbatim.
func parsePattern(s string) (PREvent, bool) {
	m := prPattern.FindStringSubmatch(s)
	if m == nil {
		return PREvent{}, false
	}
	return PREvent{
		Repository: m[1],
		Action:     m[2],
		Number:     m[3],
		Title:      m[4],
	}, true
}

// ParseCommand parses the remainder of a manual !pr command.
// A false return means the text should be echoed as-is, not dropped.
func ParseCommand(rest string) (PREvent, bool) {
	return parsePattern(strings.TrimSpace(rest))
}

// ParseMessage parses an arbitrary chat message body.
// A false return means the message is not PR-related and is ignored.
func ParseMessage(body string) (PREvent, bool) {
	return parsePattern(body)
}

// ParseEmbed parses a GitHub-authored embed. Only the title is pattern
// matched; description, URL and author are carried through verbatim.
func ParseEmbed(title, description, url, author string) (PREvent, bool) {
	if !strings.Contains(title, "Pull request") {
		return PREvent{}, false
	}
	ev, ok := parsePattern(title)
	if !ok {
		return PREvent{}, false
	}
	ev.Description = description
	ev.URL = url
	ev.Author = author
	return ev, true
}
