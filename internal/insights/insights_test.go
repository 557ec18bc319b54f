package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanpage-dashboard/internal/model"
)

func np(id, created string, st model.PostStatus, likes, comments, shares int64) model.NormalizedPost {
	return model.NormalizedPost{
		ID: id, CreatedAt: created, Status: st,
		Interactions: model.Interactions{Likes: likes, Comments: comments, Shares: shares},
	}
}

func TestSummarize(t *testing.T) {
	posts := []model.NormalizedPost{
		np("1", "", model.StatusPublished, 1, 2, 3),
		np("2", "", model.StatusPublished, 10, 0, 0),
		np("3", "", model.StatusError, 0, 5, 0),
	}
	st := Summarize(posts)
	assert.Equal(t, 3, st.PostsTotal)
	assert.Equal(t, 2, st.ByStatus[model.StatusPublished])
	assert.Equal(t, 1, st.ByStatus[model.StatusError])
	assert.Equal(t, 0, st.ByStatus[model.StatusScheduled])
	assert.Len(t, st.ByStatus, len(model.Statuses))
	assert.Equal(t, model.Interactions{Likes: 11, Comments: 7, Shares: 3}, st.Interactions)

	stored := []model.StoredPost{{NormalizedPost: posts[0], PageID: "p"}}
	assert.Equal(t, 1, Summarize(stored).PostsTotal)

	empty := Summarize([]model.NormalizedPost(nil))
	assert.Zero(t, empty.PostsTotal)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	p := Paginate(items, 1, 3)
	assert.Equal(t, []int{1, 2, 3}, p.Items)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 7, p.Total)

	p = Paginate(items, 3, 3)
	assert.Equal(t, []int{7}, p.Items)

	p = Paginate(items, 99, 3)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, []int{7}, p.Items)

	p = Paginate(items, -4, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.Size)
	assert.Len(t, p.Items, 7)

	e := Paginate([]int{}, 2, 10)
	assert.Equal(t, 1, e.Page)
	assert.Equal(t, 1, e.TotalPages)
	assert.NotNil(t, e.Items)
	assert.Empty(t, e.Items)
}

func TestCalendar(t *testing.T) {
	hcm := time.FixedZone("ICT", 7*3600)
	posts := []model.NormalizedPost{
		np("a", "2024-02-01T03:00:00Z", model.StatusPublished, 0, 0, 0),
		np("b", "2024-01-31T20:00:00Z", model.StatusScheduled, 0, 0, 0), // Feb 1st in ICT
		np("c", "2024-02-29T12:00:00Z", model.StatusDraft, 0, 0, 0),
		np("d", "2024-03-01T12:00:00Z", model.StatusDraft, 0, 0, 0),
		np("e", "", model.StatusDraft, 0, 0, 0),
	}
	m := Calendar(posts, 2024, time.February, hcm)
	assert.Equal(t, 2024, m.Year)
	assert.Equal(t, 2, m.Month)
	assert.Equal(t, 4, m.Leading) // 2024-02-01 is a Thursday
	require.Len(t, m.Days, 29)
	assert.Equal(t, "2024-02-01", m.Days[0].Date)
	require.Len(t, m.Days[0].Posts, 2)
	assert.Equal(t, "a", m.Days[0].Posts[0].ID)
	assert.Equal(t, "b", m.Days[0].Posts[1].ID)
	require.Len(t, m.Days[28].Posts, 1)
	assert.Equal(t, "c", m.Days[28].Posts[0].ID)
	assert.Empty(t, m.Days[10].Posts)

	// month overflow normalizes like time.Date
	n := Calendar([]model.NormalizedPost{}, 2024, 13, nil)
	assert.Equal(t, 2025, n.Year)
	assert.Equal(t, 1, n.Month)
	assert.Len(t, n.Days, 31)
}

func TestFormatDateTime(t *testing.T) {
	hcm := time.FixedZone("ICT", 7*3600)
	assert.Equal(t, "--", FormatDateTime("", hcm))
	assert.Equal(t, "not a date", FormatDateTime("not a date", hcm))
	assert.Equal(t, "17:30:00 2/1/2024", FormatDateTime("2024-01-02T10:30:00+0000", hcm))
	assert.Equal(t, "07:00:00 1/1/2024", FormatDateTime("1704067200", hcm))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Đã đăng", StatusLabel(model.StatusPublished))
	assert.Equal(t, "Lên lịch", StatusLabel(model.StatusScheduled))
	assert.Equal(t, "Khác", StatusLabel("bogus"))
}
