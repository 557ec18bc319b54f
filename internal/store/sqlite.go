// 包 store 基于 SQLite 持久化同步得到的页面与归一化文章。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fanpage-dashboard/internal/model"
)

// ErrNotFound 表示单行查询未命中。
var ErrNotFound = errors.New("not found")

// SQLite 封装 *sql.DB，驱动为 modernc.org/sqlite（纯 Go）。
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// PostFilter 为 ListPosts 的过滤条件，零值表示不限。
type PostFilter struct {
	PageID string
	Status model.PostStatus
	Since  time.Time // 含，按解析后的创建时间
	Until  time.Time // 不含
	Limit  int
}

// OpenSQLite 打开 path 处的数据库并执行建表迁移。
func OpenSQLite(path string) (*SQLite, error) {
	// modernc 同时接受普通文件路径与 "file:" URI
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空两张表，保留数据库文件。
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return fmt.Errorf("delete posts: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pages`); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	return nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pages (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            source TEXT NOT NULL DEFAULT '',
            updated_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS posts (
            id TEXT PRIMARY KEY,
            page_id TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at TEXT NOT NULL DEFAULT '',
            created_unix INTEGER,
            status TEXT NOT NULL,
            images TEXT NOT NULL DEFAULT '[]',
            likes INTEGER NOT NULL DEFAULT 0,
            comments INTEGER NOT NULL DEFAULT 0,
            shares INTEGER NOT NULL DEFAULT 0,
            source TEXT NOT NULL DEFAULT '',
            synced_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_posts_page ON posts(page_id, created_unix);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// UpsertPage 按 id 插入或更新页面。
func (s *SQLite) UpsertPage(ctx context.Context, p model.PageSummary) error {
	if p.ID == "" {
		return errors.New("page.id required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO pages(id, name, source, updated_at) VALUES(?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET name=excluded.name, source=excluded.source, updated_at=excluded.updated_at`,
		p.ID, p.Name, p.Source, s.nowOr(p.UpdatedAt).Unix())
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", p.ID, err)
	}
	return nil
}

// UpsertPost 按 id 插入或更新文章，同一 id 以最后一次写入为准。
func (s *SQLite) UpsertPost(ctx context.Context, p model.StoredPost) error {
	if p.ID == "" {
		return errors.New("post.id required")
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	imgJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("encode images of %s: %w", p.ID, err)
	}
	var createdUnix sql.NullInt64
	if t, ok := p.CreatedTime(); ok {
		createdUnix = sql.NullInt64{Int64: t.Unix(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO posts(id, page_id, content, created_at, created_unix, status, images, likes, comments, shares, source, synced_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET page_id=excluded.page_id, content=excluded.content, created_at=excluded.created_at,
            created_unix=excluded.created_unix, status=excluded.status, images=excluded.images, likes=excluded.likes,
            comments=excluded.comments, shares=excluded.shares, source=excluded.source, synced_at=excluded.synced_at`,
		p.ID, p.PageID, p.Content, p.CreatedAt, createdUnix, string(p.Status), string(imgJSON),
		p.Interactions.Likes, p.Interactions.Comments, p.Interactions.Shares, p.Source, s.nowOr(p.SyncedAt).Unix())
	if err != nil {
		return fmt.Errorf("upsert post %s: %w", p.ID, err)
	}
	return nil
}

// ListPages 按名称排序返回全部页面。
func (s *SQLite) ListPages(ctx context.Context) ([]model.PageSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, source, updated_at FROM pages ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()
	out := []model.PageSummary{}
	for rows.Next() {
		var p model.PageSummary
		var updated int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Source, &updated); err != nil {
			return nil, fmt.Errorf("scan pages: %w", err)
		}
		p.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}

const postColumns = `id, page_id, content, created_at, status, images, likes, comments, shares, source, synced_at`

// ListPosts 返回符合 f 的文章，按创建时间倒序；
// 创建时间无法解析的文章排在最后。
func (s *SQLite) ListPosts(ctx context.Context, f PostFilter) ([]model.StoredPost, error) {
	var (
		where []string
		args  []any
	)
	if f.PageID != "" {
		where = append(where, "page_id = ?")
		args = append(args, f.PageID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		where = append(where, "created_unix >= ?")
		args = append(args, f.Since.Unix())
	}
	if !f.Until.IsZero() {
		where = append(where, "created_unix < ?")
		args = append(args, f.Until.Unix())
	}
	q := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_unix IS NULL, created_unix DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()
	out := []model.StoredPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// GetPost 返回单篇文章，不存在时返回 ErrNotFound。
func (s *SQLite) GetPost(ctx context.Context, id string) (model.StoredPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StoredPost{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(sc scanner) (model.StoredPost, error) {
	var (
		p        model.StoredPost
		status   string
		images   string
		syncedAt int64
	)
	err := sc.Scan(&p.ID, &p.PageID, &p.Content, &p.CreatedAt, &status, &images,
		&p.Interactions.Likes, &p.Interactions.Comments, &p.Interactions.Shares, &p.Source, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("scan posts: %w", err)
	}
	p.Status = model.PostStatus(status)
	p.Images = []string{}
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return p, fmt.Errorf("decode images of %s: %w", p.ID, err)
	}
	p.SyncedAt = time.Unix(syncedAt, 0).UTC()
	return p, nil
}

// Stats 统计页面与文章数量，可限定单个页面。
func (s *SQLite) Stats(ctx context.Context, pageID string) (model.Stats, error) {
	st := model.Stats{ByStatus: make(map[model.PostStatus]int, len(model.Statuses))}
	for _, v := range model.Statuses {
		st.ByStatus[v] = 0
	}
	cond, args := "", []any{}
	pageCond := ""
	if pageID != "" {
		cond, pageCond = ` WHERE page_id = ?`, ` WHERE id = ?`
		args = append(args, pageID)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM pages`+pageCond, args...).Scan(&st.PagesTotal); err != nil {
		return st, fmt.Errorf("count pages: %w", err)
	}
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(likes),0), COALESCE(SUM(comments),0), COALESCE(SUM(shares),0) FROM posts`+cond, args...).
		Scan(&st.PostsTotal, &st.Interactions.Likes, &st.Interactions.Comments, &st.Interactions.Shares)
	if err != nil {
		return st, fmt.Errorf("count posts: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM posts`+cond+` GROUP BY status`, args...)
	if err != nil {
		return st, fmt.Errorf("count posts by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("scan status counts: %w", err)
		}
		st.ByStatus[model.PostStatus(status)] += n
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("iterate status counts: %w", err)
	}
	st.UpdatedAt = s.now()
	return st, nil
}

// CleanOldPosts 删除创建时间早于 days 天前的文章并返回删除条数；
// 无创建时间的文章保留。
func (s *SQLite) CleanOldPosts(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -days).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE created_unix IS NOT NULL AND created_unix < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clean old posts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLite) nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}
