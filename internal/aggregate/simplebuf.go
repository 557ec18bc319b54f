package aggregate

import (
	"sort"
	"sync"

	"fanpage-dashboard/internal/model"
)

// SimpleBuffer 在极简模式下收集页面与文章，避免落库。
type SimpleBuffer struct {
	mu    sync.Mutex
	pages map[string]model.PageSummary // key: id
	posts map[string]model.StoredPost  // key: id
}

func NewSimpleBuffer() *SimpleBuffer {
	return &SimpleBuffer{
		pages: make(map[string]model.PageSummary),
		posts: make(map[string]model.StoredPost),
	}
}

func (b *SimpleBuffer) AddPage(p model.PageSummary) {
	if p.ID == "" {
		return
	}
	b.mu.Lock()
	b.pages[p.ID] = p
	b.mu.Unlock()
}

// AddPost 保存 p，同一 id 后写覆盖先写。
func (b *SimpleBuffer) AddPost(p model.StoredPost) {
	if p.ID == "" {
		return
	}
	b.mu.Lock()
	b.posts[p.ID] = p
	b.mu.Unlock()
}

// Snapshot 返回副本：
// - pages 按名称排序
// - posts 按创建时间倒序，无时间的排在最后
func (b *SimpleBuffer) Snapshot() ([]model.PageSummary, []model.StoredPost) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pages := make([]model.PageSummary, 0, len(b.pages))
	for _, v := range b.pages {
		pages = append(pages, v)
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Name != pages[j].Name {
			return pages[i].Name < pages[j].Name
		}
		return pages[i].ID < pages[j].ID
	})
	posts := make([]model.StoredPost, 0, len(b.posts))
	for _, v := range b.posts {
		posts = append(posts, v)
	}
	SortNewestFirst(posts)
	return pages, posts
}

// SortNewestFirst 按解析后的创建时间倒序排序；无法解析的排在最后，
// 时间相同按 id 排序。
func SortNewestFirst(posts []model.StoredPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		ti, oki := posts[i].CreatedTime()
		tj, okj := posts[j].CreatedTime()
		switch {
		case oki && okj && !ti.Equal(tj):
			return ti.After(tj)
		case oki != okj:
			return oki
		default:
			return posts[i].ID < posts[j].ID
		}
	})
}
