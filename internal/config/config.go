// 包 config 负责加载与校验应用配置（settings.yaml），
// 支持环境变量（含 .env 文件）覆盖，并填充默认值。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultGraphAPIVersion 在配置文件与环境变量均未指定版本时使用。
const DefaultGraphAPIVersion = "v19.0"

// 文章拉取的时间范围模式。
const (
	RangeAll   = "all"
	RangeYear  = "year"
	RangeDates = "range"
)

// Config 为应用配置，字段名与 settings.yaml 及环境变量保持一致。
type Config struct {
	APIBaseURL       string       `yaml:"API_BASE_URL"`
	UserToken        string       `yaml:"FACEBOOK_USER_TOKEN"`
	GraphAPIVersion  string       `yaml:"GRAPH_API_VERSION"`
	PageIDs          []string     `yaml:"PAGE_IDS"`
	Range            Range        `yaml:"RANGE"`
	MaxPaging        int          `yaml:"MAX_PAGING"`
	FeedSources      []FeedSource `yaml:"FEED_SOURCES"`
	OutdateCleanDays int          `yaml:"OUTDATE_CLEAN"`
	ExportLimit      int          `yaml:"EXPORT_LIMIT"`
	SimpleMode       bool         `yaml:"SIMPLE_MODE"`
	ResetOnStart     bool         `yaml:"RESET_ON_START"`
	Database         Database     `yaml:"DATABASE"`
	Concurrency      Concurrency  `yaml:"CONCURRENCY"`
	Proxy            Proxy        `yaml:"PROXY"`
	Server           Server       `yaml:"SERVER"`
	LogLevel         string       `yaml:"LOG_LEVEL"`
	LogFormat        string       `yaml:"LOG_FORMAT"` // text|json|pretty
	LogLocale        string       `yaml:"LOG_LOCALE"` // en|vi
	LogColor         string       `yaml:"LOG_COLOR"`  // auto|always|never
}

// Range 决定同步拉取哪些文章：全部、某一年或 since/until 区间。
type Range struct {
	Mode  string `yaml:"mode"`
	Year  int    `yaml:"year"`
	Since string `yaml:"since"` // YYYY-MM-DD
	Until string `yaml:"until"` // YYYY-MM-DD
}

// FeedSource 通过 RSS/Atom/JSON 订阅镜像一个页面。
type FeedSource struct {
	PageID string `yaml:"page_id"`
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Preset string `yaml:"preset"`
}

type Database struct {
	Type string `yaml:"type"` // sqlite
	DSN  string `yaml:"dsn"`
}

type Concurrency struct {
	Fetch int `yaml:"fetch"`
	Retry int `yaml:"retry"`
}

type Proxy struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

type Server struct {
	Addr     string `yaml:"addr"`
	SyncCron string `yaml:"sync_cron"` // 标准 5 段 cron 表达式，为空则不定时同步
}

// Load 读取配置文件，应用环境变量覆盖并校验。
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadEnvFiles 将 .env 文件载入进程环境变量，不覆盖已设置的变量；
// 不存在的文件直接跳过。
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv 用环境变量覆盖文件配置。同时接受 NEXT_PUBLIC_ 前缀的变量名，
// 以便直接复用前端的 .env.local。
func (c *Config) ApplyEnv() {
	if v := firstEnv("API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := firstEnv("FACEBOOK_USER_TOKEN", "NEXT_PUBLIC_FACEBOOK_USER_TOKEN"); v != "" {
		c.UserToken = v
	}
	if v := firstEnv("GRAPH_API_VERSION", "NEXT_PUBLIC_GRAPH_API_VERSION"); v != "" {
		c.GraphAPIVersion = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Validate 校验取值并填充默认值。
func (c *Config) Validate() error {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" && len(c.FeedSources) == 0 {
		return errors.New("API_BASE_URL is required unless FEED_SOURCES are configured")
	}
	if c.APIBaseURL != "" && !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must start with http:// or https://, got %q", c.APIBaseURL)
	}
	if c.GraphAPIVersion == "" {
		c.GraphAPIVersion = DefaultGraphAPIVersion
	}
	if err := c.Range.validate(); err != nil {
		return err
	}
	for i, fs := range c.FeedSources {
		if fs.URL == "" || fs.PageID == "" {
			return fmt.Errorf("FEED_SOURCES[%d]: page_id and url are required", i)
		}
	}
	if c.MaxPaging < 0 {
		return errors.New("MAX_PAGING must be >= 0")
	}
	if c.MaxPaging == 0 {
		c.MaxPaging = 1
	}
	if c.OutdateCleanDays < 0 {
		return errors.New("OUTDATE_CLEAN must be >= 0")
	}
	if c.ExportLimit < 0 {
		return errors.New("EXPORT_LIMIT must be >= 0")
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "./dashboard.db"
	}
	if c.Concurrency.Fetch <= 0 {
		c.Concurrency.Fetch = 4
	}
	if c.Concurrency.Retry < 0 {
		c.Concurrency.Retry = 2
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Server.SyncCron != "" {
		if _, err := cron.ParseStandard(c.Server.SyncCron); err != nil {
			return fmt.Errorf("SERVER.sync_cron %q: %w", c.Server.SyncCron, err)
		}
	}
	if c.LogFormat == "" {
		c.LogFormat = "pretty"
	}
	if c.LogLocale == "" {
		c.LogLocale = "en"
	}
	if c.LogColor == "" {
		c.LogColor = "auto"
	}
	return nil
}

func (r *Range) validate() error {
	r.Mode = strings.ToLower(strings.TrimSpace(r.Mode))
	switch r.Mode {
	case "":
		r.Mode = RangeAll
	case RangeAll, RangeYear:
	case RangeDates:
		for _, d := range []string{r.Since, r.Until} {
			if d == "" {
				continue
			}
			if _, err := time.Parse(time.DateOnly, d); err != nil {
				return fmt.Errorf("RANGE date %q must be YYYY-MM-DD", d)
			}
		}
	default:
		return fmt.Errorf("RANGE.mode must be all|year|range, got %q", r.Mode)
	}
	return nil
}

// MaskToken 用于日志中显示凭据："***" 加末尾 8 个字符。
func MaskToken(tok string) string {
	if tok == "" {
		return "MISSING"
	}
	if len(tok) <= 8 {
		return "***"
	}
	return "***" + tok[len(tok)-8:]
}
