package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"gabinet/internal/calsync"
	"gabinet/internal/capture"
	"gabinet/internal/config"
	"gabinet/internal/csvimport"
	"gabinet/internal/ics"
	appLog "gabinet/internal/log"
	"gabinet/internal/store"
	"gabinet/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	debug      bool

	importEntity string
	importCSV    string
	syncOnce     bool
	snapshot     bool
}

func main() {
	flags := parseFlags()

	config.LoadEnv(flags.envFile)
	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("gabinet starting", "version", version)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"database", conf.Database,
		"feeds", len(conf.Feeds),
		"sync_cron", conf.Sync.Cron,
		"snapshot_cron", conf.Snapshot.Cron,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := store.Open(conf.Database)
	if err != nil {
		appLog.Error("failed to open database", err, "path", conf.Database)
		os.Exit(1)
	}
	defer st.Close()

	syncer := &calsync.Syncer{
		Fetcher:    ics.NewFetcher(conf.Sync.CacheDir, 30*time.Second),
		Sink:       st,
		Feeds:      feedsOf(conf),
		Location:   loc,
		PastDays:   conf.Sync.PastDays,
		FutureDays: conf.Sync.FutureDays,
	}

	if flags.importCSV != "" || flags.syncOnce {
		var code int
		if flags.importCSV != "" {
			code = runImport(ctx, conf, st, flags.importEntity, flags.importCSV)
		} else {
			code = runSyncOnce(ctx, syncer)
		}
		st.Close()
		os.Exit(code)
	}

	srv, err := web.NewServer(conf, st)
	if err != nil {
		appLog.Error("invalid schedule config", err)
		os.Exit(1)
	}

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run(ctx) }()

	if flags.snapshot {
		code := 0
		if err := waitHealthy(ctx, localBase(conf.Listen)); err != nil {
			appLog.Error("server did not come up", err)
			code = 1
		} else if err := snapshot(ctx, conf); err != nil {
			code = 1
		}
		cancel()
		<-srvErr
		st.Close()
		os.Exit(code)
	}

	sched := calsync.NewScheduler(ctx, loc)
	if conf.Sync.Cron != "" && len(conf.Feeds) > 0 {
		if err := sched.Add("calendar-sync", conf.Sync.Cron, func(ctx context.Context) {
			syncer.RunOnce(ctx)
		}); err != nil {
			appLog.Error("invalid sync schedule", err)
			os.Exit(1)
		}
	}
	if conf.Snapshot.Cron != "" {
		if err := sched.Add("snapshot", conf.Snapshot.Cron, func(ctx context.Context) {
			_ = snapshot(ctx, conf)
		}); err != nil {
			appLog.Error("invalid snapshot schedule", err)
			os.Exit(1)
		}
	}
	sched.Start()

	if err := <-srvErr; err != nil {
		appLog.Error("HTTP server failed", err)
		cancel()
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	sched.Stop(stopCtx)
	appLog.Info("gabinet exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.envFile, "env", ".env", "Path to a .env file with GABINET_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.importEntity, "import", "contacts", "Entity type for --csv ("+fmt.Sprint(csvimport.Entities())+")")
	flag.StringVar(&cfg.importCSV, "csv", "", "Import this CSV file and exit")
	flag.BoolVar(&cfg.syncOnce, "sync-once", false, "Sync calendar feeds once and exit")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Render today's schedule to snapshot.path and exit")

	flag.Parse()

	return cfg
}

func feedsOf(conf *config.Config) []ics.Feed {
	feeds := make([]ics.Feed, 0, len(conf.Feeds))
	for _, f := range conf.Feeds {
		id := f.ID
		if id == "" {
			id = f.Name
		}
		feeds = append(feeds, ics.Feed{ID: id, URL: f.URL})
	}
	return feeds
}

func runImport(ctx context.Context, conf *config.Config, st *store.Store, entity, path string) int {
	f, err := os.Open(path)
	if err != nil {
		appLog.Error("failed to open CSV", err, "path", path)
		return 1
	}
	defer f.Close()

	im := &csvimport.Importer{Creator: st, BatchSize: conf.Import.BatchSize}
	res, err := im.Import(ctx, entity, f, func(done, total int) {
		appLog.Info("csv import progress", "done", done, "total", total)
	})
	if err != nil {
		appLog.Error("csv import failed", err, "entity", entity, "path", path)
		return 1
	}
	return printJSON(res)
}

func runSyncOnce(ctx context.Context, syncer *calsync.Syncer) int {
	rep := syncer.RunOnce(ctx)
	if code := printJSON(rep); code != 0 {
		return code
	}
	if len(rep.Failed) > 0 {
		return 1
	}
	return 0
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		appLog.Error("failed to write result", err)
		return 1
	}
	return 0
}

func snapshot(ctx context.Context, conf *config.Config) error {
	u, err := capture.DayURL(localBase(conf.Listen), "")
	if err != nil {
		appLog.Error("invalid snapshot URL", err, "listen", conf.Listen)
		return err
	}
	opts := capture.Options{
		URL:        u,
		OutputPath: conf.Snapshot.Path,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
		NoSandbox:  os.Geteuid() == 0,
	}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		opts.URL, err = withUserinfo(u, conf.BasicAuth.Username, conf.BasicAuth.Password)
		if err != nil {
			return err
		}
	}
	if err := capture.SchedulePNG(ctx, opts); err != nil {
		appLog.Error("snapshot failed", err, "path", conf.Snapshot.Path)
		return err
	}
	appLog.Info("snapshot written", "path", conf.Snapshot.Path)
	return nil
}

// localBase turns a listen address into a URL reachable from this host.
func localBase(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func waitHealthy(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func withUserinfo(raw, user, pass string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.User = url.UserPassword(user, pass)
	return u.String(), nil
}
