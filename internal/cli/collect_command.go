package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/roman628/tiktok-archiver/internal/collector"
	"github.com/roman628/tiktok-archiver/internal/config"
	"github.com/roman628/tiktok-archiver/internal/progress"
	"github.com/roman628/tiktok-archiver/internal/source"
	"github.com/roman628/tiktok-archiver/internal/store"
	"github.com/roman628/tiktok-archiver/internal/whisper"
	"github.com/roman628/tiktok-archiver/internal/ytdlp"
)

func runCollect(args []string) error {
	fs := flag.NewFlagSet("collect", flag.ContinueOnError)
	urlsPath := fs.String("urls", "", "path to URL list file (one URL per line)")
	storePath := fs.String("store", "", "store file path (overrides config)")
	progressPath := fs.String("progress", "", "progress file path (overrides config)")
	envPath := fs.String("env", "", "path to .env config file")
	download := fs.Bool("download", false, "also download media files")
	audioOnly := fs.Bool("audio-only", false, "download audio as mp3 instead of video")
	withComments := fs.Bool("comments", false, "extract top comments per video")
	withWhisper := fs.Bool("whisper", false, "transcribe downloaded media (implies --download)")
	markSource := fs.Bool("mark-source", false, "rewrite the --urls file marking collected URLs with a leading '-'")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*urlsPath) == "" {
		fs.Usage()
		return errors.New("--urls is required")
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
	if strings.TrimSpace(*progressPath) != "" {
		cfg.Store.ProgressPath = strings.TrimSpace(*progressPath)
	}
	if *withWhisper {
		cfg.Whisper.Enabled = true
		*download = true
	}

	list, err := source.ReadList(*urlsPath)
	if err != nil {
		return err
	}
	urls := make([]string, 0, len(list.Pending))
	skippedNonTikTok := 0
	for _, url := range list.Pending {
		if cfg.Store.TikTokOnly && !source.IsTikTokURL(url) {
			skippedNonTikTok++
			continue
		}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		fmt.Println("no pending URLs to collect")
		return nil
	}

	tracker, err := progress.Load(cfg.Store.ProgressPath, cfg.Store.Path, cfg.Store.FlushEvery, log)
	if err != nil {
		return err
	}

	client := &ytdlp.Client{
		CookiesPath:       cfg.Fetch.CookiesPath,
		ProxyURL:          cfg.Fetch.ProxyURL,
		MSToken:           cfg.Fetch.MSToken,
		DownloadLimitMBps: cfg.Fetch.DownloadLimitMBps,
	}
	opts := collector.Options{
		StorePath: cfg.Store.Path,
		Tracker:   tracker,
		Fetcher: &collector.YTDLPFetcher{
			Client:        client,
			DownloadMedia: *download,
			OutputDir:     cfg.Store.OutputDir,
			Quality:       cfg.Fetch.Quality,
			AudioOnly:     *audioOnly,
		},
		BatchSize:   cfg.Store.BatchSize,
		ItemTimeout: cfg.Fetch.ItemTimeout,
		Limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Fetch.RequestsPerMinute)), 1),
		MaxComments: cfg.Fetch.MaxComments,
		MaxReplies:  cfg.Fetch.MaxReplies,
		Log:         log,
	}
	if *withComments {
		opts.Comments = &collector.YTDLPCommentFetcher{Client: client}
	}
	if cfg.Whisper.Enabled {
		opts.Transcriber = &whisper.Client{
			Binary: cfg.Whisper.Binary,
			Model:  cfg.Whisper.Model,
		}
	}

	driver, err := collector.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := driver.Run(ctx, urls)
	if err != nil {
		return err
	}

	if *markSource {
		if err := markCollectedSources(*urlsPath, cfg.Store.Path); err != nil {
			log.WithError(err).Warn("Failed to mark source list")
		}
	}

	fmt.Printf("processed: %d\n", summary.Processed)
	fmt.Printf("succeeded: %d\n", summary.Succeeded)
	fmt.Printf("failed: %d\n", summary.Failed)
	fmt.Printf("skipped: %d\n", summary.Skipped)
	fmt.Printf("appended: %d\n", summary.Appended)
	if skippedNonTikTok > 0 {
		fmt.Printf("skipped_non_tiktok: %d\n", skippedNonTikTok)
	}
	if summary.Interrupted {
		fmt.Println("interrupted: progress saved, rerun to resume")
	}
	if failed := tracker.Counts().FailedURLs; len(failed) > 0 {
		fmt.Printf("failed_urls: %d (will retry on next run)\n", len(failed))
	}
	return nil
}

// markCollectedSources rewrites the url list with the legacy '-' marker for
// every pending url that made it into the store, for lists shared with older
// tools. The progress tracker stays the authoritative record either way.
func markCollectedSources(listPath, storePath string) error {
	loaded, err := store.LoadOrEmpty(storePath)
	if err != nil {
		return err
	}
	stored := store.URLSet(loaded.Records)

	list, err := source.ReadList(listPath)
	if err != nil {
		return err
	}
	for _, url := range list.Pending {
		if !stored[url] {
			continue
		}
		if err := source.MarkProcessed(listPath, url); err != nil {
			return err
		}
	}
	return nil
}
