package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanpage-dashboard/internal/model"
	"fanpage-dashboard/internal/store"
)

func seeded(t *testing.T, n int) *store.SQLite {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	require.NoError(t, s.UpsertPage(ctx, model.PageSummary{ID: "p1", Name: "Shop"}))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p := model.StoredPost{
			NormalizedPost: model.NormalizedPost{
				ID:           fmt.Sprintf("post-%03d", i),
				Content:      "c",
				CreatedAt:    base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
				Status:       model.StatusPublished,
				Interactions: model.Interactions{Likes: 1},
			},
			PageID: "p1",
		}
		require.NoError(t, s.UpsertPost(ctx, p))
	}
	return s
}

func readExport(t *testing.T, path string) model.Export {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var e model.Export
	require.NoError(t, json.Unmarshal(b, &e))
	return e
}

func TestToJSON_DefaultCap(t *testing.T) {
	s := seeded(t, 200)
	out := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, ToJSON(context.Background(), s, out, 0))

	e := readExport(t, out)
	require.Len(t, e.Posts, DefaultLimit)
	assert.Equal(t, "post-199", e.Posts[0].ID)
	assert.Equal(t, DefaultLimit, e.Stats.PostsTotal)
	assert.Equal(t, DefaultLimit, e.Stats.ByStatus[model.StatusPublished])
	assert.Equal(t, int64(DefaultLimit), e.Stats.Interactions.Likes)
	assert.Equal(t, 1, e.Stats.PagesTotal)
	assert.Equal(t, "Shop", e.Pages[0].Name)
}

func TestToJSON_CustomLimit(t *testing.T) {
	s := seeded(t, 5)
	out := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, ToJSON(context.Background(), s, out, 2))
	assert.Len(t, readExport(t, out).Posts, 2)
}

func TestToJSONData_Empty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, ToJSONData(nil, nil, out, 0))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"posts": []`)
	assert.Contains(t, string(b), `"pages": []`)
	assert.Contains(t, string(b), `"postsTotal": 0`)
	assert.Contains(t, string(b), `"updatedAt":`)
	assert.NotContains(t, string(b), `posts_total`)
}

func TestWriteCSV(t *testing.T) {
	pages := []model.PageSummary{{ID: "p1", Name: "Shop"}}
	posts := []model.StoredPost{{
		NormalizedPost: model.NormalizedPost{
			ID: "1", Content: "hello, \"world\"", CreatedAt: "2024-01-02T10:30:00+0000",
			Status: model.StatusScheduled, Images: []string{"a", "b"},
			Interactions: model.Interactions{Likes: 2, Comments: 3, Shares: 4},
		},
		PageID: "p1",
	}, {
		NormalizedPost: model.NormalizedPost{ID: "2", Content: "x", Status: model.StatusDraft},
		PageID:         "gone",
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, pages, posts, time.UTC))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"1", "p1", "Shop", "scheduled", "Lên lịch", "2024-01-02T10:30:00+0000",
		"10:30:00 2/1/2024", "hello, \"world\"", "2", "3", "4", "9", "a b"}, rows[1])
	assert.Equal(t, "", rows[2][2])
	assert.Equal(t, "--", rows[2][6])
}

func TestToCSV(t *testing.T) {
	s := seeded(t, 3)
	out := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, ToCSV(context.Background(), s, out, 0, time.UTC))
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, "post-002", rows[1][0])
}
