// Package facebook talks to the Graph API proxy backend: it lists managed
// pages and pulls raw post payloads for a page by date range or by year.
// Post payloads are returned raw; turning them into posts is the job of
// package normalize.
package facebook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"fanpage-dashboard/internal/fetch"
	"fanpage-dashboard/internal/logx"
	"fanpage-dashboard/internal/model"
	"fanpage-dashboard/internal/normalize"
)

var (
	ErrMissingToken  = errors.New("access token not provided")
	ErrMissingParams = errors.New("missing required parameters")
	ErrUnauthorized  = errors.New("token invalid or expired")
	ErrBadRequest    = errors.New("bad request")
)

const (
	pagesPath       = "/api/facebook/pages"
	postsPath       = "/api/facebook/posts"
	postsByYearPath = "/api/facebook/posts/by-year"
	// DefaultMaxPayload bounds one backend response.
	DefaultMaxPayload = 32 << 20
)

// Getter is the subset of *fetch.Client the service needs.
type Getter interface {
	GetBytes(ctx context.Context, rawURL string, header http.Header, limit int64) ([]byte, error)
}

// Service calls the backend rooted at BaseURL.
type Service struct {
	client       Getter
	baseURL      string
	userToken    string
	graphVersion string
	maxPayload   int64
}

// NewService creates a Service. userToken is the default for FetchPages and
// graphVersion the default for post queries.
func NewService(client Getter, baseURL, userToken, graphVersion string) *Service {
	return &Service{client: client, baseURL: baseURL, userToken: userToken, graphVersion: graphVersion, maxPayload: DefaultMaxPayload}
}

// FetchPages lists the pages the user manages. An empty userToken falls back
// to the configured one.
func (s *Service) FetchPages(ctx context.Context, userToken string) ([]model.ManagedPage, error) {
	if userToken == "" {
		userToken = s.userToken
	}
	if userToken == "" {
		return nil, fmt.Errorf("fetch pages: user %w", ErrMissingToken)
	}
	raw, err := s.client.GetBytes(ctx, s.baseURL+pagesPath, fetch.BearerHeader(userToken), s.maxPayload)
	if err != nil {
		return nil, fmt.Errorf("fetch pages: %w", mapError(err))
	}
	pages, dropped := normalize.PagesReport(raw)
	if dropped > 0 {
		logx.Warnf("%d page entries skipped: missing id, name or token", dropped)
	}
	if len(pages) == 0 {
		logx.Warnf("backend returned no usable pages")
	}
	return pages, nil
}

// FetchPostsByDateRange returns the raw posts payload for a page between
// Since and Until (both optional, YYYY-MM-DD).
func (s *Service) FetchPostsByDateRange(ctx context.Context, p model.FetchPostsParams) ([]byte, error) {
	if p.PageID == "" || p.PageToken == "" {
		return nil, fmt.Errorf("fetch posts: pageId and pageToken: %w", ErrMissingParams)
	}
	q := BuildQuery(map[string]string{
		"pageId":          p.PageID,
		"since":           p.Since,
		"until":           p.Until,
		"graphApiVersion": s.version(p.GraphAPIVersion),
	})
	raw, err := s.client.GetBytes(ctx, s.baseURL+postsPath+"?"+q.Encode(), fetch.BearerHeader(p.PageToken), s.maxPayload)
	if err != nil {
		return nil, fmt.Errorf("fetch posts %s: %w", p.PageID, mapError(err))
	}
	return raw, nil
}

// FetchPostsByYear returns the raw posts payload for a page in one year.
func (s *Service) FetchPostsByYear(ctx context.Context, p model.FetchPostsByYearParams) ([]byte, error) {
	if p.PageID == "" || p.PageToken == "" || p.Year == 0 {
		return nil, fmt.Errorf("fetch posts by year: pageId, pageToken and year: %w", ErrMissingParams)
	}
	q := BuildQuery(map[string]string{
		"pageId":          p.PageID,
		"year":            strconv.Itoa(p.Year),
		"graphApiVersion": s.version(p.GraphAPIVersion),
	})
	raw, err := s.client.GetBytes(ctx, s.baseURL+postsByYearPath+"?"+q.Encode(), fetch.BearerHeader(p.PageToken), s.maxPayload)
	if err != nil {
		return nil, fmt.Errorf("fetch posts %s year %d: %w", p.PageID, p.Year, mapError(err))
	}
	return raw, nil
}

// FetchNext follows a paging.next link. Relative links resolve against the
// backend base URL.
func (s *Service) FetchNext(ctx context.Context, next, pageToken string) ([]byte, error) {
	target := next
	if u, err := url.Parse(next); err == nil && !u.IsAbs() {
		target = s.baseURL + "/" + trimSlash(next)
	}
	raw, err := s.client.GetBytes(ctx, target, fetch.BearerHeader(pageToken), s.maxPayload)
	if err != nil {
		return nil, fmt.Errorf("fetch next page: %w", mapError(err))
	}
	return raw, nil
}

func (s *Service) version(v string) string {
	if v != "" {
		return v
	}
	return s.graphVersion
}

// BuildQuery encodes params, leaving out empty values.
func BuildQuery(params map[string]string) url.Values {
	q := url.Values{}
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

// YearRange returns the first and last day of year. A non-positive year means
// the current year.
func YearRange(year int, now time.Time) (since, until string, resolved int) {
	if year <= 0 {
		year = now.Year()
	}
	return fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year), year
}

// mapError turns HTTP status failures into the sentinel errors callers
// branch on.
func mapError(err error) error {
	var se *fetch.StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case http.StatusBadRequest:
		msg := gjson.GetBytes(se.Body, "message").String()
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	default:
		return err
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	return s
}
