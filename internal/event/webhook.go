package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/go-github/v50/github"
)

// ErrNotPullRequest indicates an issue_comment payload for a plain issue.
// Such events are valid webhooks but carry nothing the relay tracks.
var ErrNotPullRequest = errors.New("issue_comment is not on a pull request")

// ActionMerged is the synthetic action substituted for a closed PR whose
// merged flag is set. The rewrite happens here, before any event reaches
// the classifier or registry.
const ActionMerged = "merged"

// numberString renders a PR number, treating zero as absent so that
// Valid() catches payloads without one.
func numberString(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// ParseWebhook decodes a GitHub webhook payload into a normalized PREvent.
// Missing optional fields decode to empty strings, never nil propagation.
func ParseWebhook(eventType string, body []byte) (PREvent, Kind, error) {
	kind, ok := KindForType(eventType)
	if !ok {
		return PREvent{}, 0, fmt.Errorf("unhandled event type %q", eventType)
	}

	switch kind {
	case KindPrimary:
		return parsePullRequest(body)
	case KindReview:
		return parseReview(body)
	case KindComment:
		return parseIssueComment(body)
	case KindReviewComment:
		return parseReviewComment(body)
	default:
		return PREvent{}, 0, fmt.Errorf("unhandled event kind %v", kind)
	}
}

func parsePullRequest(body []byte) (PREvent, Kind, error) {
	var payload github.PullRequestEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return PREvent{}, 0, fmt.Errorf("decode pull_request payload: %w", err)
	}

	pr := payload.GetPullRequest()
	ev := PREvent{
		Repository:  payload.GetRepo().GetFullName(),
		Number:      numberString(pr.GetNumber()),
		Action:      payload.GetAction(),
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		URL:         pr.GetHTMLURL(),
		Author:      pr.GetUser().GetLogin(),
	}

	// A closed PR with the merged flag set was merged, not abandoned.
	if ev.Action == "closed" && pr.GetMerged() {
		ev.Action = ActionMerged
	}

	if !ev.Valid() {
		return PREvent{}, 0, fmt.Errorf("pull_request payload missing repository or number")
	}
	return ev, KindPrimary, nil
}

func parseReview(body []byte) (PREvent, Kind, error) {
	var payload github.PullRequestReviewEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return PREvent{}, 0, fmt.Errorf("decode pull_request_review payload: %w", err)
	}

	review := payload.GetReview()
	ev := PREvent{
		Repository:  payload.GetRepo().GetFullName(),
		Number:      numberString(payload.GetPullRequest().GetNumber()),
		Action:      review.GetState(),
		Description: review.GetBody(),
		URL:         review.GetHTMLURL(),
		Author:      review.GetUser().GetLogin(),
	}

	if !ev.Valid() {
		return PREvent{}, 0, fmt.Errorf("pull_request_review payload missing repository or number")
	}
	return ev, KindReview, nil
}

func parseIssueComment(body []byte) (PREvent, Kind, error) {
	var payload github.IssueCommentEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return PREvent{}, 0, fmt.Errorf("decode issue_comment payload: %w", err)
	}

	issue := payload.GetIssue()
	if !issue.IsPullRequest() {
		return PREvent{}, 0, ErrNotPullRequest
	}

	comment := payload.GetComment()
	ev := PREvent{
		Repository:  payload.GetRepo().GetFullName(),
		Number:      numberString(issue.GetNumber()),
		Action:      payload.GetAction(),
		Description: comment.GetBody(),
		URL:         comment.GetHTMLURL(),
		Author:      comment.GetUser().GetLogin(),
	}

	if !ev.Valid() {
		return PREvent{}, 0, fmt.Errorf("issue_comment payload missing repository or number")
	}
	return ev, KindComment, nil
}

func parseReviewComment(body []byte) (PREvent, Kind, error) {
	var payload github.PullRequestReviewCommentEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return PREvent{}, 0, fmt.Errorf("decode pull_request_review_comment payload: %w", err)
	}

	comment := payload.GetComment()
	ev := PREvent{
		Repository:  payload.GetRepo().GetFullName(),
		Number:      numberString(payload.GetPullRequest().GetNumber()),
		Action:      payload.GetAction(),
		Description: comment.GetBody(),
		URL:         comment.GetHTMLURL(),
		Author:      comment.GetUser().GetLogin(),
	}

	if !ev.Valid() {
		return PREvent{}, 0, fmt.Errorf("pull_request_review_comment payload missing repository or number")
	}
	return ev, KindReviewComment, nil
}
