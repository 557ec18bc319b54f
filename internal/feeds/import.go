package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"fanpage-dashboard/internal/config"
	"fanpage-dashboard/internal/fetch"
	"fanpage-dashboard/internal/logx"
	"fanpage-dashboard/internal/model"
	"fanpage-dashboard/internal/normalize"
	"fanpage-dashboard/internal/rules"
)

const (
	defaultContentExpr = "."
	defaultImageExpr   = "img@src"
)

// Import 抓取 src 对应的订阅，返回至多 max 篇文章（0 表示不限），
// 归一化方式与后端数据完全一致。
func Import(ctx context.Context, cl *fetch.Client, src config.FeedSource, preset rules.Preset, max int) ([]model.NormalizedPost, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	feedURL, err := Resolve(reqCtx, cl, src.URL)
	if err != nil {
		return nil, err
	}
	resp, err := cl.Get(reqCtx, feedURL, feedHeader)
	if err != nil {
		return nil, fmt.Errorf("GET feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()
	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	raw, err := RawPosts(feed, feedURL, preset, max)
	if err != nil {
		return nil, err
	}
	posts, dropped := normalize.PostsReport(raw)
	if dropped > 0 {
		logx.Debugf("feed %s: %d items without guid or link skipped", feedURL, dropped)
	}
	return posts, nil
}

// RawPosts 将订阅条目渲染为类 Graph 的 {"data":[...]} 数据。
func RawPosts(feed *gofeed.Feed, base string, preset rules.Preset, max int) ([]byte, error) {
	items := make([]map[string]any, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, rawItem(it, base, preset.FeedItem))
		if max > 0 && len(items) >= max {
			break
		}
	}
	b, err := json.Marshal(map[string]any{"data": items})
	if err != nil {
		return nil, fmt.Errorf("encode feed items: %w", err)
	}
	return b, nil
}

func rawItem(it *gofeed.Item, base string, fi *rules.FeedItem) map[string]any {
	contentExpr, imageExpr := defaultContentExpr, defaultImageExpr
	if fi != nil {
		if fi.Content != "" {
			contentExpr = fi.Content
		}
		if fi.Image != "" {
			imageExpr = fi.Image
		}
	}

	id := strings.TrimSpace(it.GUID)
	if id == "" {
		id = strings.TrimSpace(it.Link)
	}
	m := map[string]any{
		"id":     id,
		"status": "published",
		"story":  strings.TrimSpace(it.Title),
	}

	body := it.Content
	if body == "" {
		body = it.Description
	}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		m["message"] = plainText(valueOf(doc.Selection, contentExpr))
		var imgs []string
		for _, src := range valuesOf(doc.Selection, imageExpr) {
			imgs = append(imgs, absURL(base, src))
		}
		if len(imgs) > 0 {
			m["images"] = imgs
		}
	}
	if it.Image != nil && it.Image.URL != "" {
		m["full_picture"] = absURL(base, it.Image.URL)
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			m["picture"] = absURL(base, enc.URL)
			break
		}
	}
	if it.PublishedParsed != nil {
		m["created_time"] = it.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if it.UpdatedParsed != nil {
		m["updated_time"] = it.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return m
}
