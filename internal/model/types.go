// 包 model 定义各视图共享的归一化页面/文章结构，以及统计与导出结构。
package model

import (
	"strconv"
	"strings"
	"time"
)

// PostStatus 为文章的发布状态。
type PostStatus string

const (
	StatusPublished PostStatus = "published"
	StatusScheduled PostStatus = "scheduled"
	StatusDraft     PostStatus = "draft"
	StatusError     PostStatus = "error"
	StatusUnknown   PostStatus = "unknown"
)

// Statuses 按展示顺序列出全部状态。
var Statuses = []PostStatus{StatusPublished, StatusScheduled, StatusDraft, StatusError, StatusUnknown}

// ParseStatus 解析查询参数中的状态名（不区分大小写）。
func ParseStatus(s string) (PostStatus, bool) {
	st := PostStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Statuses {
		if v == st {
			return st, true
		}
	}
	return "", false
}

// ManagedPage 表示用户可管理的页面；Token 为请求该页面时使用的页面级凭据。
type ManagedPage struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Interactions 为文章的互动计数。
type Interactions struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// Total 返回各项计数之和。
func (i Interactions) Total() int64 { return i.Likes + i.Comments + i.Shares }

// NormalizedPost 为归一化后的文章条目，统一了上游多种数据形态。
type NormalizedPost struct {
	ID           string       `json:"id"`
	Content      string       `json:"content"`
	CreatedAt    string       `json:"createdAt,omitempty"`
	Status       PostStatus   `json:"status"`
	Images       []string     `json:"images"`
	Interactions Interactions `json:"interactions"`
}

// Normalized 返回 p 本身；StoredPost 通过嵌入继承，视图因此可同时接受两种结构。
func (p NormalizedPost) Normalized() NormalizedPost { return p }

// createdLayouts 为上游出现过的时间格式；
// Graph API 的 created_time 为 "2006-01-02T15:04:05-0700"。
var createdLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CreatedTime 解析 CreatedAt；纯数字视为 unix 秒（scheduled_publish_time 即如此）。
func (p NormalizedPost) CreatedTime() (time.Time, bool) {
	return ParseTimestamp(p.CreatedAt)
}

// ParseTimestamp 解析上游时间字符串。
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Paging 为文章列表附带的分页游标。
type Paging struct {
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	Before   string `json:"before,omitempty"`
	After    string `json:"after,omitempty"`
}

// FetchPostsParams 按日期区间（YYYY-MM-DD）选择单个页面的文章。
type FetchPostsParams struct {
	PageID          string
	PageToken       string
	Since           string
	Until           string
	GraphAPIVersion string
}

// FetchPostsByYearParams 按年份选择单个页面的文章。
type FetchPostsByYearParams struct {
	PageID          string
	PageToken       string
	Year            int
	GraphAPIVersion string
}

// StoredPost 为归一化文章及其所属页面。
type StoredPost struct {
	NormalizedPost
	PageID   string    `json:"pageId"`
	Source   string    `json:"source"`
	SyncedAt time.Time `json:"syncedAt"`
}

// Stats 为聚合统计信息（统计卡片）。
type Stats struct {
	PagesTotal   int                `json:"pagesTotal"`
	PostsTotal   int                `json:"postsTotal"`
	ByStatus     map[PostStatus]int `json:"byStatus"`
	Interactions Interactions       `json:"interactions"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Export 为导出的 data.json 顶层结构。
type Export struct {
	Stats Stats         `json:"stats"`
	Pages []PageSummary `json:"pages"`
	Posts []StoredPost  `json:"posts"`
}

// PageSummary 为去掉凭据的 ManagedPage，可安全落库与展示。
type PageSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}
