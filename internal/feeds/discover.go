// 包 feeds 导入以 RSS/Atom/JSON 订阅镜像、无法经 Graph API 后端访问的页面文章：
//   - Resolve：直接接受订阅地址，或从 HTML <link> 中发现订阅
//   - Import：用 gofeed 解析条目，转成 Graph 文章结构后走常规文章归一化
package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"fanpage-dashboard/internal/fetch"
	"fanpage-dashboard/internal/logx"
)

var (
	feedHeader = http.Header{"Accept": {"application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8"}}
	htmlHeader = http.Header{"Accept": {"text/html, */*;q=0.8"}}
)

// Resolve 若 site 本身即订阅则直接返回，否则返回 HTML head 中声明的第一个订阅链接。
func Resolve(ctx context.Context, cl *fetch.Client, site string) (string, error) {
	if probeFeed(ctx, cl, site) {
		return site, nil
	}
	resp, err := cl.Get(ctx, site, htmlHeader)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", site, err)
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", site, err)
	}
	var found string
	doc.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		typ := strings.ToLower(s.AttrOr("type", ""))
		href := s.AttrOr("href", "")
		if href == "" || !strings.Contains(rel, "alternate") {
			return true
		}
		if strings.Contains(typ, "rss") || strings.Contains(typ, "atom") || strings.Contains(typ, "json") {
			found = absURL(site, href)
			return false
		}
		return true
	})
	if found != "" && probeFeed(ctx, cl, found) {
		logx.Debugf("feed discovered via <link>: %s", found)
		return found, nil
	}
	return "", fmt.Errorf("no feed discovered for %s", site)
}

// probeFeed 依据 Content-Type 与响应体开头判断是否为订阅。
func probeFeed(ctx context.Context, cl *fetch.Client, feedURL string) bool {
	prCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	resp, err := cl.Get(prCtx, feedURL, feedHeader)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	head, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	lb := bytes.ToLower(head)
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "rss"), strings.Contains(ct, "atom"), strings.Contains(ct, "xml"):
		return true
	case strings.Contains(ct, "json"):
		return bytes.Contains(lb, []byte("jsonfeed.org/version"))
	}
	return bytes.Contains(lb, []byte("<rss")) || bytes.Contains(lb, []byte("<feed")) ||
		bytes.Contains(lb, []byte("<rdf")) || bytes.Contains(lb, []byte("jsonfeed.org/version"))
}
