package normalize

import (
	"strings"

	"github.com/tidwall/gjson"

	"fanpage-dashboard/internal/model"
)

// DefaultRawStatus is assumed when a post carries no status-like field.
const DefaultRawStatus = "published"

var (
	statusPaths     = []string{"status", "state", "postStatus"}
	attachmentPaths = []string{"media.image.src", "media.source", "full_picture", "picture"}
)

// Images collects image URLs in this order: the explicit images array, one
// candidate per attachment, full_picture, picture. Duplicates keep their
// first position; only non-empty strings are kept.
func Images(post gjson.Result) []string {
	out := []string{}
	seen := make(map[string]struct{})
	add := func(v gjson.Result) {
		if v.Type != gjson.String || v.Str == "" {
			return
		}
		if _, ok := seen[v.Str]; ok {
			return
		}
		seen[v.Str] = struct{}{}
		out = append(out, v.Str)
	}

	if imgs := post.Get("images"); imgs.IsArray() {
		for _, v := range imgs.Array() {
			add(v)
		}
	}
	if atts := post.Get("attachments.data"); atts.IsArray() {
		for _, att := range atts.Array() {
			if v, ok := firstTruthy(att, attachmentPaths...); ok {
				add(v)
			}
		}
	}
	if v := post.Get("full_picture"); truthy(v) {
		add(v)
	}
	if v := post.Get("picture"); truthy(v) {
		add(v)
	}
	return out
}

// Status classifies the first truthy of status/state/postStatus.
func Status(post gjson.Result) model.PostStatus {
	raw := DefaultRawStatus
	if v, ok := firstTruthy(post, statusPaths...); ok {
		raw = text(v)
	}
	return ClassifyStatus(raw)
}

// ClassifyStatus maps a free-form status string. Checks run in a fixed
// order, so "Scheduled-Draft" is scheduled.
func ClassifyStatus(raw string) model.PostStatus {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "schedule"):
		return model.StatusScheduled
	case strings.Contains(s, "draft"):
		return model.StatusDraft
	case strings.Contains(s, "error"):
		return model.StatusError
	case strings.Contains(s, "publish"):
		return model.StatusPublished
	default:
		return model.StatusUnknown
	}
}

// Interactions resolves likes/comments/shares through their fallback chains.
func Interactions(post gjson.Result) model.Interactions {
	return model.Interactions{
		Likes:    firstCount(post, "likes.summary.total_count", "reactions.summary.total_count", "likeCount", "likes", "engagement.like"),
		Comments: firstCount(post, "comments.summary.total_count", "commentCount", "comments", "engagement.comment"),
		Shares:   firstCount(post, "shares.count", "shareCount", "shares", "engagement.share"),
	}
}
