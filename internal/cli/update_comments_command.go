package cli

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/roman628/tiktok-archiver/internal/collector"
	"github.com/roman628/tiktok-archiver/internal/config"
	"github.com/roman628/tiktok-archiver/internal/ytdlp"
)

func runUpdateComments(args []string) error {
	fs := flag.NewFlagSet("update-comments", flag.ContinueOnError)
	storePath := fs.String("store", "", "store file path (overrides config)")
	envPath := fs.String("env", "", "path to .env config file")
	saveEvery := fs.Int("save-every", 10, "rewrite the store after this many updated records")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	cfg, err := config.Load(*envPath, log)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*storePath) != "" {
		cfg.Store.Path = strings.TrimSpace(*storePath)
	}

	client := &ytdlp.Client{
		CookiesPath: cfg.Fetch.CookiesPath,
		ProxyURL:    cfg.Fetch.ProxyURL,
		MSToken:     cfg.Fetch.MSToken,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := collector.UpdateComments(ctx, collector.UpdateCommentsOptions{
		StorePath:   cfg.Store.Path,
		Fetcher:     &collector.YTDLPCommentFetcher{Client: client},
		MaxComments: cfg.Fetch.MaxComments,
		MaxReplies:  cfg.Fetch.MaxReplies,
		SaveEvery:   *saveEvery,
		ItemTimeout: cfg.Fetch.ItemTimeout,
		Limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Fetch.RequestsPerMinute)), 1),
		Log:         log,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(summary)
	}
	fmt.Printf("total: %d\n", summary.Total)
	fmt.Printf("already_had: %d\n", summary.AlreadyHad)
	fmt.Printf("updated: %d\n", summary.Updated)
	fmt.Printf("failed: %d\n", summary.Failed)
	if summary.Interrupted {
		fmt.Println("interrupted: partial progress saved, rerun to resume")
	}
	return nil
}
