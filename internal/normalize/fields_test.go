package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"fanpage-dashboard/internal/model"
)

func TestImages_CollectionOrderAndDedup(t *testing.T) {
	post := gjson.Parse(`{
		"images":["http://x/explicit.jpg","",null,7,"http://x/shared.jpg"],
		"attachments":{"data":[
			{"media":{"image":{"src":"http://x/shared.jpg"}}},
			{"media":{"source":"http://x/video.mp4"}},
			{"full_picture":"http://x/att-full.jpg","picture":"http://x/att-pic.jpg"},
			{"picture":"http://x/att-pic.jpg"},
			{"media":{"image":{"src":""}},"picture":"http://x/fallback.jpg"},
			{}
		]},
		"full_picture":"http://x/full.jpg",
		"picture":"http://x/shared.jpg"
	}`)
	assert.Equal(t, []string{
		"http://x/explicit.jpg",
		"http://x/shared.jpg",
		"http://x/video.mp4",
		"http://x/att-full.jpg",
		"http://x/att-pic.jpg",
		"http://x/fallback.jpg",
		"http://x/full.jpg",
	}, Images(post))
}

func TestImages_SameURLEverywhere(t *testing.T) {
	post := gjson.Parse(`{
		"attachments":{"data":[{"media":{"image":{"src":"http://x/a.jpg"}}}]},
		"full_picture":"http://x/a.jpg",
		"picture":"http://x/a.jpg"
	}`)
	assert.Equal(t, []string{"http://x/a.jpg"}, Images(post))
}

func TestImages_Empty(t *testing.T) {
	got := Images(gjson.Parse(`{"images":"not-an-array","attachments":{"data":{}}}`))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStatus_Classification(t *testing.T) {
	cases := []struct {
		raw  string
		want model.PostStatus
	}{
		{`{}`, model.StatusPublished},
		{`{"status":""}`, model.StatusPublished},
		{`{"status":"Scheduled-Draft"}`, model.StatusScheduled},
		{`{"status":"SCHEDULED"}`, model.StatusScheduled},
		{`{"state":"DRAFT"}`, model.StatusDraft},
		{`{"postStatus":"draft-error"}`, model.StatusDraft},
		{`{"status":"Error"}`, model.StatusError},
		{`{"status":"is_published"}`, model.StatusPublished},
		{`{"status":"archived"}`, model.StatusUnknown},
		{`{"status":"","state":"","postStatus":"publishing"}`, model.StatusPublished},
		{`{"status":3}`, model.StatusUnknown},
		{`{"status":false,"state":"scheduled"}`, model.StatusScheduled},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(gjson.Parse(tc.raw)), tc.raw)
	}
}

func TestClassifyStatus_Order(t *testing.T) {
	assert.Equal(t, model.StatusScheduled, ClassifyStatus("draft to be scheduled"))
	assert.Equal(t, model.StatusDraft, ClassifyStatus("Draft (publish later)"))
	assert.Equal(t, model.StatusError, ClassifyStatus("publish_error"))
	assert.Equal(t, model.StatusUnknown, ClassifyStatus(""))
}

func TestInteractions_FallbackChains(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want model.Interactions
	}{
		{"summary beats flat", `{"likes":{"summary":{"total_count":5}},"likeCount":99}`, model.Interactions{Likes: 5}},
		{"reactions summary", `{"reactions":{"summary":{"total_count":8}},"likeCount":99}`, model.Interactions{Likes: 8}},
		{"flat counts", `{"likeCount":1,"commentCount":2,"shareCount":3}`, model.Interactions{Likes: 1, Comments: 2, Shares: 3}},
		{"flat scalars", `{"likes":4,"comments":"5","shares":6}`, model.Interactions{Likes: 4, Comments: 5, Shares: 6}},
		{"engagement", `{"engagement":{"like":7,"comment":8,"share":9}}`, model.Interactions{Likes: 7, Comments: 8, Shares: 9}},
		{"graph shapes", `{"comments":{"summary":{"total_count":11}},"shares":{"count":12}}`, model.Interactions{Comments: 11, Shares: 12}},
		{"zero is a value", `{"likeCount":0,"engagement":{"like":50}}`, model.Interactions{}},
		{"null is skipped", `{"likeCount":null,"engagement":{"like":50}}`, model.Interactions{Likes: 50}},
		{"object without count is skipped", `{"likes":{"data":[]},"engagement":{"like":6}}`, model.Interactions{Likes: 6}},
		{"non numeric string skipped", `{"likeCount":"many","engagement":{"like":"2"}}`, model.Interactions{Likes: 2}},
		{"non numeric everywhere", `{"likeCount":"many","shares":"lots"}`, model.Interactions{}},
		{"negative and fractional", `{"likeCount":-3,"commentCount":2.9,"shareCount":"1e2"}`, model.Interactions{Comments: 2, Shares: 100}},
		{"bool coerces", `{"likeCount":true}`, model.Interactions{Likes: 1}},
		{"missing", `{}`, model.Interactions{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Interactions(gjson.Parse(tc.raw)))
		})
	}
}
