package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanpage-dashboard/internal/model"
)

func openTest(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func post(id, pageID, created string, st model.PostStatus, likes int64) model.StoredPost {
	return model.StoredPost{
		NormalizedPost: model.NormalizedPost{
			ID:           id,
			Content:      "c-" + id,
			CreatedAt:    created,
			Status:       st,
			Images:       []string{"https://img/" + id},
			Interactions: model.Interactions{Likes: likes, Comments: 1},
		},
		PageID: pageID,
		Source: "graph",
	}
}

func TestSQLite_PagesUpsertAndList(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPage(ctx, model.PageSummary{ID: "2", Name: "Bakery", Source: "graph"}))
	require.NoError(t, s.UpsertPage(ctx, model.PageSummary{ID: "1", Name: "Old name", Source: "graph"}))
	require.NoError(t, s.UpsertPage(ctx, model.PageSummary{ID: "1", Name: "Artisan", Source: "feed"}))
	assert.Error(t, s.UpsertPage(ctx, model.PageSummary{Name: "no id"}))

	pages, err := s.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Artisan", pages[0].Name)
	assert.Equal(t, "feed", pages[0].Source)
	assert.False(t, pages[0].UpdatedAt.IsZero())
	assert.Equal(t, "Bakery", pages[1].Name)
}

func TestSQLite_PostsCRUDAndFilter(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPost(ctx, post("a", "p1", "2024-01-05T10:00:00+0000", model.StatusPublished, 3)))
	require.NoError(t, s.UpsertPost(ctx, post("b", "p1", "2024-03-01T08:00:00Z", model.StatusScheduled, 5)))
	require.NoError(t, s.UpsertPost(ctx, post("c", "p2", "", model.StatusDraft, 0)))
	require.NoError(t, s.UpsertPost(ctx, post("d", "p1", "1706745600", model.StatusPublished, 1))) // 2024-02-01
	assert.Error(t, s.UpsertPost(ctx, model.StoredPost{}))

	all, err := s.ListPosts(ctx, PostFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)

	byPage, err := s.ListPosts(ctx, PostFilter{PageID: "p1", Status: model.StatusPublished})
	require.NoError(t, err)
	require.Len(t, byPage, 2)
	assert.Equal(t, "d", byPage[0].ID)

	feb, err := s.ListPosts(ctx, PostFilter{
		Since: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, "d", feb[0].ID)

	limited, err := s.ListPosts(ctx, PostFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := s.GetPost(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "c-a", got.Content)
	assert.Equal(t, "2024-01-05T10:00:00+0000", got.CreatedAt)
	assert.Equal(t, []string{"https://img/a"}, got.Images)
	assert.Equal(t, model.Interactions{Likes: 3, Comments: 1}, got.Interactions)
	assert.Equal(t, "p1", got.PageID)

	_, err = s.GetPost(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpsertPostLastWins(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	first := post("x", "p1", "2024-01-01", model.StatusDraft, 1)
	second := post("x", "p1", "2024-01-02", model.StatusPublished, 9)
	second.Images = nil
	require.NoError(t, s.UpsertPost(ctx, first))
	require.NoError(t, s.UpsertPost(ctx, second))

	got, err := s.GetPost(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, got.Status)
	assert.Equal(t, int64(9), got.Interactions.Likes)
	assert.Equal(t, []string{}, got.Images)
}

func TestSQLite_Stats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.UpsertPage(ctx, model.PageSummary{ID: "p1", Name: "One"}))
	require.NoError(t, s.UpsertPage(ctx, model.PageSummary{ID: "p2", Name: "Two"}))
	require.NoError(t, s.UpsertPost(ctx, post("a", "p1", "2024-01-01", model.StatusPublished, 3)))
	require.NoError(t, s.UpsertPost(ctx, post("b", "p1", "2024-01-02", model.StatusError, 2)))
	require.NoError(t, s.UpsertPost(ctx, post("c", "p2", "2024-01-03", model.StatusPublished, 10)))

	st, err := s.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, st.PagesTotal)
	assert.Equal(t, 3, st.PostsTotal)
	assert.Equal(t, 2, st.ByStatus[model.StatusPublished])
	assert.Equal(t, 1, st.ByStatus[model.StatusError])
	assert.Equal(t, 0, st.ByStatus[model.StatusDraft])
	assert.Equal(t, model.Interactions{Likes: 15, Comments: 3}, st.Interactions)
	assert.Equal(t, fixed, st.UpdatedAt)

	st, err = s.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.PagesTotal)
	assert.Equal(t, 2, st.PostsTotal)
	assert.Equal(t, int64(5), st.Interactions.Likes)
}

func TestSQLite_CleanOldPostsAndReset(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, s.UpsertPage(ctx, model.PageSummary{ID: "p1", Name: "One"}))
	require.NoError(t, s.UpsertPost(ctx, post("old", "p1", "2023-01-01", model.StatusPublished, 0)))
	require.NoError(t, s.UpsertPost(ctx, post("new", "p1", "2024-05-30", model.StatusPublished, 0)))
	require.NoError(t, s.UpsertPost(ctx, post("undated", "p1", "", model.StatusPublished, 0)))

	n, err := s.CleanOldPosts(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.CleanOldPosts(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	left, err := s.ListPosts(ctx, PostFilter{})
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "new", left[0].ID)
	assert.Equal(t, "undated", left[1].ID)

	require.NoError(t, s.Reset(ctx))
	pages, err := s.ListPages(ctx)
	require.NoError(t, err)
	posts, err := s.ListPosts(ctx, PostFilter{})
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Empty(t, posts)
}
