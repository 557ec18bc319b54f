// Package insights derives dashboard views from normalized posts: stats
// cards, table pages, a month calendar and display timestamps.
package insights

import (
	"fmt"
	"time"

	"fanpage-dashboard/internal/model"
)

// Post is satisfied by model.NormalizedPost and model.StoredPost.
type Post interface {
	Normalized() model.NormalizedPost
}

// DefaultPageSize applies when Paginate gets a non-positive size.
const DefaultPageSize = 10

// DisplayLayout renders timestamps the way vi-VN locales do (24h clock).
const DisplayLayout = "15:04:05 2/1/2006"

var statusLabels = map[model.PostStatus]string{
	model.StatusPublished: "Đã đăng",
	model.StatusScheduled: "Lên lịch",
	model.StatusDraft:     "Nháp",
	model.StatusError:     "Lỗi",
	model.StatusUnknown:   "Khác",
}

// StatusLabel returns the display label of a status.
func StatusLabel(s model.PostStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[model.StatusUnknown]
}

// Summarize counts posts per status and sums their interactions.
// PagesTotal is left to the caller.
func Summarize[P Post](posts []P) model.Stats {
	st := model.Stats{ByStatus: make(map[model.PostStatus]int, len(model.Statuses))}
	for _, s := range model.Statuses {
		st.ByStatus[s] = 0
	}
	for _, p := range posts {
		np := p.Normalized()
		st.PostsTotal++
		st.ByStatus[np.Status]++
		st.Interactions.Likes += np.Interactions.Likes
		st.Interactions.Comments += np.Interactions.Comments
		st.Interactions.Shares += np.Interactions.Shares
	}
	return st
}

// Page is one slice of a paginated list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginate returns the 1-based page of items. page is clamped into
// [1, TotalPages]; an empty list still has one (empty) page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	totalPages := max(1, (len(items)+size-1)/size)
	page = min(max(page, 1), totalPages)
	start := (page - 1) * size
	end := min(start+size, len(items))
	out := make([]T, 0, end-start)
	out = append(out, items[start:end]...)
	return Page[T]{Items: out, Page: page, Size: size, Total: len(items), TotalPages: totalPages}
}

// Day is one calendar cell.
type Day[P Post] struct {
	Day   int    `json:"day"`
	Date  string `json:"date"` // YYYY-MM-DD
	Posts []P    `json:"posts"`
}

// Month is a calendar grid starting on Sunday. Leading is the number of blank
// cells before the 1st.
type Month[P Post] struct {
	Year    int      `json:"year"`
	Month   int      `json:"month"`
	Leading int      `json:"leading"`
	Days    []Day[P] `json:"days"`
}

// Calendar buckets posts into the days of month in loc. Posts without a
// parseable creation time, or outside the month, are left out.
func Calendar[P Post](posts []P, year int, month time.Month, loc *time.Location) Month[P] {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	n := first.AddDate(0, 1, -1).Day()
	m := Month[P]{
		Year:    first.Year(),
		Month:   int(first.Month()),
		Leading: int(first.Weekday()),
		Days:    make([]Day[P], n),
	}
	for i := range m.Days {
		m.Days[i] = Day[P]{
			Day:   i + 1,
			Date:  fmt.Sprintf("%04d-%02d-%02d", m.Year, m.Month, i+1),
			Posts: []P{},
		}
	}
	for _, p := range posts {
		t, ok := p.Normalized().CreatedTime()
		if !ok {
			continue
		}
		t = t.In(loc)
		if t.Year() != m.Year || int(t.Month()) != m.Month {
			continue
		}
		d := &m.Days[t.Day()-1]
		d.Posts = append(d.Posts, p)
	}
	return m
}

// FormatDateTime renders an upstream timestamp in loc: "--" when empty, the
// raw value when it cannot be parsed.
func FormatDateTime(value string, loc *time.Location) string {
	if value == "" {
		return "--"
	}
	t, ok := model.ParseTimestamp(value)
	if !ok {
		return value
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayLayout)
}
