// Package httpapi serves the dashboard data over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fanpage-dashboard/internal/aggregate"
	"fanpage-dashboard/internal/insights"
	"fanpage-dashboard/internal/logx"
	"fanpage-dashboard/internal/metrics"
	"fanpage-dashboard/internal/model"
	"fanpage-dashboard/internal/store"
)

// Store is the read side of store.SQLite.
type Store interface {
	ListPages(ctx context.Context) ([]model.PageSummary, error)
	ListPosts(ctx context.Context, f store.PostFilter) ([]model.StoredPost, error)
	GetPost(ctx context.Context, id string) (model.StoredPost, error)
	Stats(ctx context.Context, pageID string) (model.Stats, error)
}

// Syncer is implemented by *aggregate.Runner.
type Syncer interface {
	Run(ctx context.Context) (aggregate.Result, error)
	LastResult() (aggregate.Result, bool)
	Running() bool
}

type Server struct {
	store   Store
	sync    Syncer
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time
	router  *gin.Engine
}

// New builds the router. sync and m may be nil, which disables the sync and
// metrics endpoints respectively.
func New(st Store, sync Syncer, m *metrics.Metrics, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	s := &Server{store: st, sync: sync, metrics: m, loc: loc, now: time.Now}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api := r.Group("/api")
	api.GET("/pages", s.listPages)
	api.GET("/posts", s.listPosts)
	api.GET("/posts/:id", s.getPost)
	api.GET("/stats", s.stats)
	api.GET("/calendar", s.calendar)
	if sync != nil {
		api.POST("/sync", s.runSync)
		api.GET("/sync/status", s.syncStatus)
	}
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	s.router = r
	return s
}

// Handler returns the http.Handler to mount.
func (s *Server) Handler() http.Handler { return s.router }

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logx.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func fail(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func (s *Server) listPages(c *gin.Context) {
	pages, err := s.store.ListPages(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, pages)
}

// listPosts supports pageId, status, since/until (YYYY-MM-DD, until
// inclusive), page and size.
func (s *Server) listPosts(c *gin.Context) {
	f := store.PostFilter{PageID: c.Query("pageId")}
	if v := c.Query("status"); v != "" {
		st, ok := model.ParseStatus(v)
		if !ok {
			fail(c, http.StatusBadRequest, errors.New("unknown status: "+v))
			return
		}
		f.Status = st
	}
	var err error
	if f.Since, err = s.parseDay(c.Query("since"), 0); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if f.Until, err = s.parseDay(c.Query("until"), 1); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	posts, err := s.store.ListPosts(c.Request.Context(), f)
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	page := queryInt(c, "page", 1)
	size := queryInt(c, "size", insights.DefaultPageSize)
	c.JSON(http.StatusOK, insights.Paginate(posts, page, size))
}

func (s *Server) getPost(c *gin.Context) {
	p, err := s.store.GetPost(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"post":           p,
		"createdDisplay": insights.FormatDateTime(p.CreatedAt, s.loc),
		"statusLabel":    insights.StatusLabel(p.Status),
	})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.store.Stats(c.Request.Context(), c.Query("pageId"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// calendar defaults to the current month in the server location.
func (s *Server) calendar(c *gin.Context) {
	now := s.now().In(s.loc)
	year := queryInt(c, "year", now.Year())
	month := queryInt(c, "month", int(now.Month()))
	if month < 1 || month > 12 {
		fail(c, http.StatusBadRequest, errors.New("month must be 1-12"))
		return
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc)
	posts, err := s.store.ListPosts(c.Request.Context(), store.PostFilter{
		PageID: c.Query("pageId"),
		Since:  first,
		Until:  first.AddDate(0, 1, 0),
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, insights.Calendar(posts, year, time.Month(month), s.loc))
}

// runSync runs one sync round in the request. Upstream failures map to 502.
func (s *Server) runSync(c *gin.Context) {
	res, err := s.sync.Run(c.Request.Context())
	switch {
	case errors.Is(err, aggregate.ErrRunning):
		fail(c, http.StatusConflict, err)
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": res})
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) syncStatus(c *gin.Context) {
	out := gin.H{"running": s.sync.Running(), "last": nil}
	if last, ok := s.sync.LastResult(); ok {
		out["last"] = last
	}
	c.JSON(http.StatusOK, out)
}

// parseDay parses YYYY-MM-DD in the server location, shifted by addDays.
func (s *Server) parseDay(v string, addDays int) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, s.loc)
	if err != nil {
		return time.Time{}, errors.New("dates must be YYYY-MM-DD: " + v)
	}
	return t.AddDate(0, 0, addDays), nil
}

func queryInt(c *gin.Context, key string, def int) int {
	if n, err := strconv.Atoi(c.Query(key)); err == nil {
		return n
	}
	return def
}
