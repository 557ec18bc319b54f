package normalize

import (
	"fanpage-dashboard/internal/model"
)

// tokenPaths is the alias chain for the page access token.
var tokenPaths = []string{"access_token", "pageToken", "token"}

// Pages normalizes a managed-pages response ({data:[...]}, {pages:[...]} or
// a bare array). Entries lacking id, name or token are dropped.
func Pages(raw []byte) []model.ManagedPage {
	pages, _ := PagesReport(raw)
	return pages
}

// PagesReport is Pages plus the number of entries that were dropped.
func PagesReport(raw []byte) ([]model.ManagedPage, int) {
	items := entries(raw, "data", "pages")
	out := make([]model.ManagedPage, 0, len(items))
	dropped := 0
	for _, it := range items {
		id := it.Get("id")
		name := it.Get("name")
		token, ok := firstTruthy(it, tokenPaths...)
		if !truthy(id) || !truthy(name) || !ok {
			dropped++
			continue
		}
		out = append(out, model.ManagedPage{
			ID:    text(id),
			Name:  text(name),
			Token: text(token),
		})
	}
	return out, dropped
}
