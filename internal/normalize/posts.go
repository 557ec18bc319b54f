package normalize

import (
	"github.com/tidwall/gjson"

	"fanpage-dashboard/internal/model"
)

// ContentPlaceholder is shown for posts carrying no text at all.
const ContentPlaceholder = "(Không có nội dung)"

var (
	contentPaths = []string{"message", "story", "content", "description", "caption"}
	createdPaths = []string{"created_time", "createdTime", "published_time", "scheduled_publish_time", "updated_time"}
)

// Posts normalizes a posts response ({data}, {posts}, {items} or a bare
// array). Order is preserved; entries without an id are dropped.
func Posts(raw []byte) []model.NormalizedPost {
	posts, _ := PostsReport(raw)
	return posts
}

// PostsReport is Posts plus the number of entries that were dropped.
func PostsReport(raw []byte) ([]model.NormalizedPost, int) {
	items := entries(raw, "data", "posts", "items")
	out := make([]model.NormalizedPost, 0, len(items))
	dropped := 0
	for _, it := range items {
		p, ok := Post(it)
		if !ok {
			dropped++
			continue
		}
		out = append(out, p)
	}
	return out, dropped
}

// Post normalizes a single raw entry. ok is false when it has no usable id.
func Post(item gjson.Result) (model.NormalizedPost, bool) {
	var id string
	if v := item.Get("id"); defined(v) {
		id = text(v)
	}
	if id == "" {
		return model.NormalizedPost{}, false
	}
	p := model.NormalizedPost{
		ID:           id,
		Content:      ContentPlaceholder,
		Status:       Status(item),
		Images:       Images(item),
		Interactions: Interactions(item),
	}
	if v, ok := firstTruthy(item, contentPaths...); ok {
		p.Content = text(v)
	}
	if v, ok := firstTruthy(item, createdPaths...); ok {
		p.CreatedAt = text(v)
	}
	return p, true
}

// Paging extracts the cursor block next to a post list.
func Paging(raw []byte) model.Paging {
	if !gjson.ValidBytes(raw) {
		return model.Paging{}
	}
	pg := gjson.GetBytes(raw, "paging")
	str := func(path string) string {
		if v := pg.Get(path); v.Type == gjson.String {
			return v.Str
		}
		return ""
	}
	return model.Paging{
		Next:     str("next"),
		Previous: str("previous"),
		Before:   str("cursors.before"),
		After:    str("cursors.after"),
	}
}
