// 包 fetch 封装 HTTP 客户端（代理/超时/重试），用于请求 Graph API 代理后端与订阅源。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultUserAgent 可通过环境变量 FPD_UA 覆盖。
const DefaultUserAgent = "fanpage-dashboard/1.0 (+https://github.com)"

// maxErrorBody 限制失败响应保留的字节数。
const maxErrorBody = 64 << 10

// defaultBodyLimit 为 GetBytes 未指定上限时的默认值。
const defaultBodyLimit = 16 << 20

// ErrTooLarge 表示响应体超过 GetBytes 的上限；截断的内容不会返回。
var ErrTooLarge = errors.New("response body too large")

// Client 为带重试的 HTTP 客户端。
type Client struct {
	http    *http.Client
	retry   int
	backoff time.Duration
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
	Retry      int
	// Backoff 为重试基础间隔，第 n 次重试等待 n*Backoff；为 0 时取 300ms。
	Backoff time.Duration
}

// StatusError 表示非 2xx 响应。
type StatusError struct {
	Code   int
	Status string
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status: %s", e.Status)
}

// New 创建客户端：优先使用显式代理，其次读取环境变量代理。
func New(opts Options) (*Client, error) {
	var httpProxy, httpsProxy *url.URL
	var err error
	if opts.ProxyHTTP != "" {
		if httpProxy, err = url.Parse(opts.ProxyHTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	if opts.ProxyHTTPS != "" {
		if httpsProxy, err = url.Parse(opts.ProxyHTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && httpsProxy != nil {
				return httpsProxy, nil
			}
			if req.URL.Scheme == "http" && httpProxy != nil {
				return httpProxy, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		retry:   opts.Retry,
		backoff: opts.Backoff,
	}, nil
}

// BearerHeader 返回携带 Authorization bearer token 的请求头。
func BearerHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// Get 发起 GET 请求，按线性退避重试网络错误、5xx 与 429；
// 其它非 2xx 状态立即返回 *StatusError。
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(ctx, c.backoffPolicy(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}
		ua := os.Getenv("FPD_UA")
		if ua == "" {
			ua = DefaultUserAgent
		}
		req.Header.Set("User-Agent", ua)

		r, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		if r.StatusCode >= 200 && r.StatusCode < 300 {
			resp = r
			return nil
		}
		se := statusError(r)
		if retryable(r.StatusCode) {
			return retry.RetryableError(se)
		}
		return se
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// backoffPolicy 线性退避：第 n 次重试前等待 n*backoff，最多重试 c.retry 次。
func (c *Client) backoffPolicy() retry.Backoff {
	var attempt time.Duration
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return attempt * c.backoff, false
	})
	return retry.WithMaxRetries(uint64(c.retry), linear)
}

// GetBytes 执行 Get 并读取响应体，最多 limit 字节（<=0 时取 16MiB）。
// 超过上限时返回 ErrTooLarge，而不是截断后的内容。
func (c *Client) GetBytes(ctx context.Context, rawURL string, header http.Header, limit int64) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, limit)
	}
	return b, nil
}

// statusError 读取并关闭失败响应体。
func statusError(resp *http.Response) *StatusError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: body}
}

func retryable(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
