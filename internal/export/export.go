// 包 export 负责导出：将数据写为 data.json 快照或 CSV 报表。
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fanpage-dashboard/internal/insights"
	"fanpage-dashboard/internal/model"
	"fanpage-dashboard/internal/store"
)

// DefaultLimit 为未配置上限时导出的文章数。
const DefaultLimit = 150

// Source 为 store.SQLite 的读取侧。
type Source interface {
	ListPages(ctx context.Context) ([]model.PageSummary, error)
	ListPosts(ctx context.Context, f store.PostFilter) ([]model.StoredPost, error)
}

// ToJSON 查询全部页面与最新 limit 篇文章（<=0 时取 DefaultLimit），
// 写入 JSON 文件（带缩进格式）。
func ToJSON(ctx context.Context, s Source, path string, limit int) error {
	pages, posts, err := load(ctx, s, limit)
	if err != nil {
		return err
	}
	return ToJSONData(pages, posts, path, limit)
}

// ToJSONData 直接将内存中的 pages/posts 写成 data.json（极简模式），带全局上限与统计。
// posts 需已按创建时间倒序；统计只覆盖实际写出的文章。
func ToJSONData(pages []model.PageSummary, posts []model.StoredPost, path string, limit int) error {
	posts = capPosts(posts, limit)
	if pages == nil {
		pages = []model.PageSummary{}
	}
	st := insights.Summarize(posts)
	st.PagesTotal = len(pages)
	st.UpdatedAt = time.Now()
	out := model.Export{Stats: st, Pages: pages, Posts: posts}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json to %s: %w", path, err)
	}
	return nil
}

// ToCSV 查询库中数据并写成 CSV 报表。
func ToCSV(ctx context.Context, s Source, path string, limit int, loc *time.Location) error {
	pages, posts, err := load(ctx, s, limit)
	if err != nil {
		return err
	}
	return ToCSVData(pages, posts, path, limit, loc)
}

// ToCSVData 为内存数据版本的 ToCSV。
func ToCSVData(pages []model.PageSummary, posts []model.StoredPost, path string, limit int, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteCSV(f, pages, capPosts(posts, limit), loc); err != nil {
		return fmt.Errorf("write csv to %s: %w", path, err)
	}
	return nil
}

var csvHeader = []string{
	"id", "page_id", "page_name", "status", "status_label", "created_at", "created_display",
	"content", "likes", "comments", "shares", "total_interactions", "images",
}

// WriteCSV 每篇文章输出一行，多张图片以空格分隔。
func WriteCSV(w io.Writer, pages []model.PageSummary, posts []model.StoredPost, loc *time.Location) error {
	names := make(map[string]string, len(pages))
	for _, p := range pages {
		names[p.ID] = p.Name
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range posts {
		row := []string{
			p.ID,
			p.PageID,
			names[p.PageID],
			string(p.Status),
			insights.StatusLabel(p.Status),
			p.CreatedAt,
			insights.FormatDateTime(p.CreatedAt, loc),
			p.Content,
			strconv.FormatInt(p.Interactions.Likes, 10),
			strconv.FormatInt(p.Interactions.Comments, 10),
			strconv.FormatInt(p.Interactions.Shares, 10),
			strconv.FormatInt(p.Interactions.Total(), 10),
			strings.Join(p.Images, " "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func load(ctx context.Context, s Source, limit int) ([]model.PageSummary, []model.StoredPost, error) {
	pages, err := s.ListPages(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list pages: %w", err)
	}
	posts, err := s.ListPosts(ctx, store.PostFilter{Limit: effectiveLimit(limit)})
	if err != nil {
		return nil, nil, fmt.Errorf("list posts: %w", err)
	}
	return pages, posts, nil
}

func capPosts(posts []model.StoredPost, limit int) []model.StoredPost {
	if posts == nil {
		return []model.StoredPost{}
	}
	if n := effectiveLimit(limit); len(posts) > n {
		return posts[:n]
	}
	return posts
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
