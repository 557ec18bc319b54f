// 命令行入口：
//   - 加载 .env 文件、settings.yaml 与 rules.yaml
//   - 初始化日志、HTTP 客户端、后端服务与数据库
//   - 执行一轮同步并导出，列出托管页面（-pages），
//     或启动看板 API 并按 cron 定时同步（-serve）
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"fanpage-dashboard/internal/aggregate"
	"fanpage-dashboard/internal/config"
	"fanpage-dashboard/internal/export"
	"fanpage-dashboard/internal/facebook"
	"fanpage-dashboard/internal/fetch"
	"fanpage-dashboard/internal/httpapi"
	"fanpage-dashboard/internal/logx"
	"fanpage-dashboard/internal/metrics"
	"fanpage-dashboard/internal/rules"
	"fanpage-dashboard/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "settings.yaml", "path to settings.yaml")
		rulesPath  = flag.String("rules", "rules.yaml", "path to rules.yaml (optional)")
		envFiles   = flag.String("env", ".env.local,.env", "comma separated .env files, missing ones are skipped")
		exportPath = flag.String("export", "data.json", "export path after a one-shot sync, empty disables")
		format     = flag.String("format", "json", "export format: json|csv")
		listPages  = flag.Bool("pages", false, "list managed pages and exit")
		serve      = flag.Bool("serve", false, "serve the HTTP API and sync on SERVER.sync_cron")
	)
	flag.Parse()
	if *format != "json" && *format != "csv" {
		log.Fatalf("unknown -format %q", *format)
	}

	// 1) 环境变量、配置、规则
	if err := config.LoadEnvFiles(strings.Split(*envFiles, ",")...); err != nil {
		log.Fatalf("load env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	var rl *rules.Rules
	if *rulesPath != "" {
		if r, err := rules.Load(*rulesPath); err == nil {
			rl = r
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Printf("load rules failed: %v", err)
		}
	}
	logx.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogLocale, cfg.LogColor)

	// 2) HTTP 客户端与后端
	cl, err := fetch.New(fetch.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		Timeout:    25 * time.Second,
		Retry:      cfg.Concurrency.Retry,
	})
	if err != nil {
		log.Fatalf("http client: %v", err)
	}
	var graph aggregate.Graph
	if cfg.APIBaseURL != "" {
		graph = facebook.NewService(cl, cfg.APIBaseURL, cfg.UserToken, cfg.GraphAPIVersion)
		logx.Debugf("backend=%s graph=%s token=%s", cfg.APIBaseURL, cfg.GraphAPIVersion, config.MaskToken(cfg.UserToken))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listPages {
		if graph == nil {
			log.Fatalf("-pages needs API_BASE_URL")
		}
		pages, err := graph.FetchPages(ctx, "")
		if err != nil {
			log.Fatalf("list pages: %v", err)
		}
		for _, p := range pages {
			fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, config.MaskToken(p.Token))
		}
		logx.Infof("%d managed pages", len(pages))
		return
	}

	// 3) 存储：极简模式不打开数据库
	var st *store.SQLite
	var sink aggregate.Store
	if !cfg.SimpleMode {
		st, err = store.OpenSQLite(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer st.Close()
		sink = st
		if cfg.ResetOnStart {
			if err := st.Reset(ctx); err != nil {
				logx.Warnf("reset database: %v", err)
			} else {
				logx.Infof("database tables cleared (pages/posts)")
			}
		}
	} else if *serve {
		log.Fatalf("-serve needs a database, disable SIMPLE_MODE")
	}
	if cfg.ResetOnStart && *exportPath != "" {
		if err := os.Remove(*exportPath); err == nil {
			logx.Infof("removed export file %s", *exportPath)
		}
	}

	m := metrics.New()
	run := aggregate.New(cfg, graph, sink, cl, rl, m)

	if *serve {
		if err := serveAPI(ctx, cfg, st, run, m); err != nil {
			logx.Errorf("server: %v", err)
			os.Exit(1)
		}
		return
	}

	// 4) 单次同步并导出
	logx.Infof("sync started: simple mode=%v", cfg.SimpleMode)
	if _, err := run.Run(ctx); err != nil {
		os.Exit(1)
	}
	if *exportPath == "" {
		return
	}
	if cfg.SimpleMode {
		pages, posts := run.BufferData()
		if *format == "csv" {
			err = export.ToCSVData(pages, posts, *exportPath, cfg.ExportLimit, time.Local)
		} else {
			err = export.ToJSONData(pages, posts, *exportPath, cfg.ExportLimit)
		}
	} else if *format == "csv" {
		err = export.ToCSV(ctx, st, *exportPath, cfg.ExportLimit, time.Local)
	} else {
		err = export.ToJSON(ctx, st, *exportPath, cfg.ExportLimit)
	}
	if err != nil {
		log.Fatalf("export %s: %v", *format, err)
	}
	logx.Infof("exported %s", *exportPath)
}

// serveAPI 运行 HTTP API 直到 ctx 结束；配置 SERVER.sync_cron 时
// 立即执行首轮同步，之后按计划执行。
func serveAPI(ctx context.Context, cfg *config.Config, st *store.SQLite, run *aggregate.Runner, m *metrics.Metrics) error {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(st, run, m, time.Local).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *cron.Cron
	if cfg.Server.SyncCron != "" {
		sched = cron.New()
		syncOnce := func() {
			if _, err := run.Run(ctx); errors.Is(err, aggregate.ErrRunning) {
				logx.Debugf("scheduled sync skipped: previous run still active")
			}
		}
		if _, err := sched.AddFunc(cfg.Server.SyncCron, syncOnce); err != nil {
			return fmt.Errorf("schedule %q: %w", cfg.Server.SyncCron, err)
		}
		sched.Start()
		go syncOnce()
		logx.Infof("sync scheduled: %s", cfg.Server.SyncCron)
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if sched != nil {
			sched.Stop()
		}
		return err
	case <-ctx.Done():
	}
	logx.Infof("shutting down")
	if sched != nil {
		<-sched.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
