// 包 aggregate 负责主流程编排：
// - 经后端列出托管页面并保留配置中的页面
// - 并发拉取各页面文章，跟随分页链接
// - 导入订阅镜像页面
// - 落库（极简模式下写入内存）与过期清理
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fanpage-dashboard/internal/config"
	"fanpage-dashboard/internal/facebook"
	"fanpage-dashboard/internal/feeds"
	"fanpage-dashboard/internal/fetch"
	"fanpage-dashboard/internal/logx"
	"fanpage-dashboard/internal/metrics"
	"fanpage-dashboard/internal/model"
	"fanpage-dashboard/internal/normalize"
	"fanpage-dashboard/internal/rules"
)

// 页面与文章的来源标记。
const (
	SourceGraph = "graph"
	SourceFeed  = "feed"
)

// ErrRunning 表示已有一轮同步在执行。
var ErrRunning = errors.New("sync already running")

// Graph 为 Runner 用到的 facebook.Service 子集。
type Graph interface {
	FetchPages(ctx context.Context, userToken string) ([]model.ManagedPage, error)
	FetchPostsByDateRange(ctx context.Context, p model.FetchPostsParams) ([]byte, error)
	FetchPostsByYear(ctx context.Context, p model.FetchPostsByYearParams) ([]byte, error)
	FetchNext(ctx context.Context, next, pageToken string) ([]byte, error)
}

// Store 为 store.SQLite 的写入侧。
type Store interface {
	UpsertPage(ctx context.Context, p model.PageSummary) error
	UpsertPost(ctx context.Context, p model.StoredPost) error
	CleanOldPosts(ctx context.Context, days int) (int64, error)
}

// PageError 为单个页面的失败，不中断本轮同步。
type PageError struct {
	PageID string `json:"pageId"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Result 为一轮同步的汇总。
type Result struct {
	StartedAt    time.Time   `json:"startedAt"`
	FinishedAt   time.Time   `json:"finishedAt"`
	Pages        int         `json:"pages"`
	Posts        int         `json:"posts"`
	DroppedPosts int         `json:"droppedPosts"`
	Cleaned      int64       `json:"cleaned"`
	Errors       []PageError `json:"errors"`
	Err          string      `json:"err,omitempty"`
}

// Runner 聚合执行器，持有配置/后端/存储/订阅用 HTTP 客户端。
type Runner struct {
	cfg     *config.Config
	graph   Graph
	store   Store
	fetch   *fetch.Client
	rules   *rules.Rules
	metrics *metrics.Metrics
	now     func() time.Time

	// 极简模式：仅收集到内存，不访问数据库
	buf *SimpleBuffer

	running sync.Mutex
	mu      sync.Mutex
	last    *Result
}

// New 创建 Runner。仅配置订阅源时 graph 可为 nil；极简模式下 st 可为 nil。
func New(cfg *config.Config, graph Graph, st Store, cl *fetch.Client, rl *rules.Rules, m *metrics.Metrics) *Runner {
	r := &Runner{cfg: cfg, graph: graph, store: st, fetch: cl, rules: rl, metrics: m, now: time.Now}
	if cfg != nil && cfg.SimpleMode {
		r.buf = NewSimpleBuffer()
	}
	return r
}

// Run 执行一轮同步：列出页面→拉取文章→导入订阅→清理过期。
// 只有页面列表失败或 context 取消会使本轮失败；单页失败记入 Result.Errors。
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if !r.running.TryLock() {
		return Result{}, ErrRunning
	}
	defer r.running.Unlock()

	res := &result{Result: Result{StartedAt: r.now(), Errors: []PageError{}}}
	err := r.run(ctx, res)
	out := res.snapshot()
	out.FinishedAt = r.now()
	if err != nil {
		out.Err = err.Error()
	}
	r.metrics.ObserveSync(out.StartedAt, out.Pages, err)

	r.mu.Lock()
	r.last = &out
	r.mu.Unlock()

	if err != nil {
		logx.Errorf("sync failed: %v", err)
		return out, err
	}
	logx.Infof("sync done: pages=%d posts=%d dropped=%d errors=%d cleaned=%d",
		out.Pages, out.Posts, out.DroppedPosts, len(out.Errors), out.Cleaned)
	return out, nil
}

// LastResult 返回最近一轮的结果。
func (r *Runner) LastResult() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// Running 报告是否有同步正在执行。
func (r *Runner) Running() bool {
	if r.running.TryLock() {
		r.running.Unlock()
		return false
	}
	return true
}

func (r *Runner) run(ctx context.Context, res *result) error {
	if r.graph != nil {
		pages, err := r.graph.FetchPages(ctx, "")
		if err != nil {
			return fmt.Errorf("list pages: %w", err)
		}
		pages = filterPages(pages, r.cfg.PageIDs)
		logx.Infof("managed pages=%d, feed sources=%d", len(pages), len(r.cfg.FeedSources))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, r.cfg.Concurrency.Fetch))
		for _, p := range pages {
			p := p
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				r.syncGraphPage(gctx, p, res)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	for _, src := range r.cfg.FeedSources {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.syncFeed(ctx, src, res)
	}

	if r.buf == nil && r.store != nil {
		n, err := r.store.CleanOldPosts(ctx, r.cfg.OutdateCleanDays)
		if err != nil {
			logx.Warnf("clean outdated posts: %v", err)
		} else {
			res.setCleaned(n)
			r.metrics.PostsCleaned(n)
		}
	}
	return nil
}

// syncGraphPage 拉取单个页面的文章，跟随 paging.next，最多 MaxPaging 批。
func (r *Runner) syncGraphPage(ctx context.Context, p model.ManagedPage, res *result) {
	r.savePage(ctx, model.PageSummary{ID: p.ID, Name: p.Name, Source: SourceGraph}, res)

	raw, err := r.firstPostsPayload(ctx, p)
	for n := 1; ; n++ {
		if err != nil {
			r.pageFailed(p.ID, SourceGraph, err, res)
			return
		}
		posts, dropped := normalize.PostsReport(raw)
		res.addDropped(dropped)
		r.metrics.Dropped("post", dropped)
		r.savePosts(ctx, p.ID, SourceGraph, posts, res)
		logx.Debugf("[%s] payload %d: posts=%d dropped=%d", p.Name, n, len(posts), dropped)

		next := normalize.Paging(raw).Next
		if next == "" || n >= r.cfg.MaxPaging {
			return
		}
		raw, err = r.graph.FetchNext(ctx, next, p.Token)
	}
}

func (r *Runner) firstPostsPayload(ctx context.Context, p model.ManagedPage) ([]byte, error) {
	switch r.cfg.Range.Mode {
	case config.RangeYear:
		_, _, year := facebook.YearRange(r.cfg.Range.Year, r.now())
		return r.graph.FetchPostsByYear(ctx, model.FetchPostsByYearParams{
			PageID: p.ID, PageToken: p.Token, Year: year, GraphAPIVersion: r.cfg.GraphAPIVersion,
		})
	case config.RangeDates:
		return r.graph.FetchPostsByDateRange(ctx, model.FetchPostsParams{
			PageID: p.ID, PageToken: p.Token, Since: r.cfg.Range.Since, Until: r.cfg.Range.Until,
			GraphAPIVersion: r.cfg.GraphAPIVersion,
		})
	default:
		return r.graph.FetchPostsByDateRange(ctx, model.FetchPostsParams{
			PageID: p.ID, PageToken: p.Token, GraphAPIVersion: r.cfg.GraphAPIVersion,
		})
	}
}

func (r *Runner) syncFeed(ctx context.Context, src config.FeedSource, res *result) {
	name := src.Name
	if name == "" {
		name = src.PageID
	}
	var preset rules.Preset
	if p, ok := r.rules.GetPreset(src.Preset); ok {
		preset = p
	}
	posts, err := feeds.Import(ctx, r.fetch, src, preset, 0)
	if err != nil {
		r.pageFailed(src.PageID, SourceFeed, err, res)
		return
	}
	r.savePage(ctx, model.PageSummary{ID: src.PageID, Name: name, Source: SourceFeed}, res)
	r.savePosts(ctx, src.PageID, SourceFeed, posts, res)
	logx.Infof("[%s] feed imported: %d posts", name, len(posts))
}

func (r *Runner) savePage(ctx context.Context, p model.PageSummary, res *result) {
	p.UpdatedAt = r.now()
	res.addPage()
	if r.buf != nil {
		r.buf.AddPage(p)
		return
	}
	if err := r.store.UpsertPage(ctx, p); err != nil {
		logx.Warnf("store page %s: %v", p.ID, err)
	}
}

func (r *Runner) savePosts(ctx context.Context, pageID, source string, posts []model.NormalizedPost, res *result) {
	synced := r.now()
	for _, np := range posts {
		sp := model.StoredPost{NormalizedPost: np, PageID: pageID, Source: source, SyncedAt: synced}
		if r.buf != nil {
			r.buf.AddPost(sp)
		} else if err := r.store.UpsertPost(ctx, sp); err != nil {
			logx.Warnf("store post %s: %v", np.ID, err)
			continue
		}
		res.addPosts(1)
		r.metrics.PostSynced(source, string(np.Status))
	}
}

func (r *Runner) pageFailed(pageID, source string, err error, res *result) {
	logx.Warnf("[%s|%s] sync failed: %v", source, pageID, err)
	res.addError(PageError{PageID: pageID, Source: source, Error: err.Error()})
	r.metrics.PageError(source)
}

// BufferData 返回极简模式下收集的内存数据（页面、文章）。
func (r *Runner) BufferData() ([]model.PageSummary, []model.StoredPost) {
	if r == nil || r.buf == nil {
		return nil, nil
	}
	return r.buf.Snapshot()
}

// filterPages 保留 id 在列表中的页面，列表为空时全部保留。
func filterPages(pages []model.ManagedPage, ids []string) []model.ManagedPage {
	if len(ids) == 0 {
		return pages
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = struct{}{}
		}
	}
	out := make([]model.ManagedPage, 0, len(pages))
	for _, p := range pages {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// result 在多个页面 worker 并发写入时保护 Result。
type result struct {
	mu sync.Mutex
	Result
}

func (r *result) addPage() {
	r.mu.Lock()
	r.Pages++
	r.mu.Unlock()
}

func (r *result) addPosts(n int) {
	r.mu.Lock()
	r.Posts += n
	r.mu.Unlock()
}

func (r *result) addDropped(n int) {
	r.mu.Lock()
	r.DroppedPosts += n
	r.mu.Unlock()
}

func (r *result) addError(e PageError) {
	r.mu.Lock()
	r.Errors = append(r.Errors, e)
	r.mu.Unlock()
}

func (r *result) setCleaned(n int64) {
	r.mu.Lock()
	r.Cleaned = n
	r.mu.Unlock()
}

func (r *result) snapshot() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.Result
	out.Errors = append([]PageError{}, r.Errors...)
	return out
}
