package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/roman628/tiktok-archiver/internal/model"
	"github.com/roman628/tiktok-archiver/internal/progress"
	"github.com/roman628/tiktok-archiver/internal/store"
)

// Options configures a collection run.
type Options struct {
	StorePath   string
	Tracker     *progress.Tracker
	Fetcher     VideoFetcher
	Comments    CommentFetcher // nil disables comment extraction
	Transcriber Transcriber    // nil disables transcription
	BatchSize   int
	ItemTimeout time.Duration
	Limiter     *rate.Limiter // nil means unthrottled
	MaxComments int
	MaxReplies  int
	Log         *logrus.Logger
}

// Summary is the end-of-run report.
type Summary struct {
	Processed   int
	Succeeded   int
	Failed      int
	Skipped     int
	Appended    int
	Interrupted bool
}

// Driver runs the sequential collection loop: one worker, one store. The
// store lock makes a second concurrent run fail fast instead of racing the
// atomic-replace writer.
type Driver struct {
	opts Options

	batch     []model.Record
	batchURLs []string
}

const (
	defaultBatchSize   = 5
	defaultItemTimeout = 5 * time.Minute
	defaultMaxComments = 10
	defaultMaxReplies  = 5
)

func New(opts Options) (*Driver, error) {
	if strings.TrimSpace(opts.StorePath) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("progress tracker is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("video fetcher is required")
	}
	if opts.Log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = defaultItemTimeout
	}
	if opts.MaxComments <= 0 {
		opts.MaxComments = defaultMaxComments
	}
	if opts.MaxReplies <= 0 {
		opts.MaxReplies = defaultMaxReplies
	}
	return &Driver{opts: opts}, nil
}

// Run processes urls sequentially until the list is exhausted or ctx is
// cancelled. Cancellation is observed between items only; an in-flight
// item finishes (or times out) before the run drains. Progress is always
// flushed on the way out.
func (d *Driver) Run(ctx context.Context, urls []string) (Summary, error) {
	lock, err := store.AcquireLock(d.opts.StorePath)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			d.opts.Log.WithError(err).Warn("Failed to release store lock")
		}
	}()

	var summary Summary
	defer d.finalize(&summary)

	for _, url := range urls {
		if ctx.Err() != nil {
			summary.Interrupted = true
			d.opts.Log.Info("Shutdown requested, draining")
			break
		}

		if d.opts.Tracker.IsDuplicate(url) {
			summary.Processed++
			summary.Skipped++
			if err := d.opts.Tracker.RecordOutcome(url, progress.OutcomeSkipped); err != nil {
				return summary, err
			}
			d.opts.Log.WithField("url", url).Debug("Already collected, skipping")
			continue
		}

		if d.opts.Limiter != nil {
			if err := d.opts.Limiter.Wait(ctx); err != nil {
				summary.Interrupted = true
				break
			}
		}

		summary.Processed++
		d.opts.Tracker.SetCurrent(url)

		rec, ok := d.collectOne(ctx, url)
		d.opts.Tracker.SetCurrent("")
		if !ok {
			summary.Failed++
			if err := d.opts.Tracker.RecordOutcome(url, progress.OutcomeFailed); err != nil {
				return summary, err
			}
			continue
		}

		d.batch = append(d.batch, rec)
		d.batchURLs = append(d.batchURLs, url)
		if len(d.batch) >= d.opts.BatchSize {
			if err := d.flushBatch(&summary); err != nil {
				return summary, err
			}
		}
	}

	if err := d.flushBatch(&summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// collectOne fetches one video under the per-item timeout. Comment and
// transcription failures degrade the record instead of failing the item.
func (d *Driver) collectOne(ctx context.Context, url string) (model.Record, bool) {
	itemCtx, cancel := context.WithTimeout(ctx, d.opts.ItemTimeout)
	defer cancel()

	log := d.opts.Log.WithField("url", url)

	result := d.opts.Fetcher.Fetch(itemCtx, url)
	if !result.Success {
		err := result.Err
		if err == nil {
			err = errors.New("fetch reported failure without error")
		}
		log.WithError(err).Warn("Fetch failed")
		return model.Record{}, false
	}
	rec := result.Record
	if !rec.HasURL() {
		rec.URL = url
	}

	if d.opts.Comments != nil {
		comments, err := d.opts.Comments.FetchComments(itemCtx, url, d.opts.MaxComments, d.opts.MaxReplies)
		if err != nil {
			log.WithError(err).Warn("Comment extraction failed, keeping record without comments")
		} else {
			rec.CommentsExtracted = true
			rec.TopComments = comments
			rec.CommentsExtractedAt = time.Now().Format(time.RFC3339)
		}
	}

	if d.opts.Transcriber != nil && result.MediaPath != "" {
		text, err := d.opts.Transcriber.Transcribe(itemCtx, result.MediaPath)
		if err != nil {
			log.WithError(err).Warn("Transcription failed, keeping record without transcription")
		} else if strings.TrimSpace(text) != "" {
			rec.Transcription = &model.Transcription{Source: "whisper", Text: text}
		}
	}

	return rec, true
}

// flushBatch appends collected records and only then marks their URLs
// succeeded, so an append failure leaves them eligible for retry.
func (d *Driver) flushBatch(summary *Summary) error {
	if len(d.batch) == 0 {
		return nil
	}
	result, err := store.Append(d.batch, d.opts.StorePath)
	if err != nil {
		for _, url := range d.batchURLs {
			summary.Failed++
			if rerr := d.opts.Tracker.RecordOutcome(url, progress.OutcomeFailed); rerr != nil {
				d.opts.Log.WithError(rerr).Warn("Failed to record outcome")
			}
		}
		d.batch = nil
		d.batchURLs = nil
		return fmt.Errorf("append batch to store: %w", err)
	}
	summary.Appended += result.Appended
	if result.Repaired {
		d.opts.Log.WithFields(logrus.Fields{
			"backup":    result.BackupPath,
			"discarded": result.Discarded,
		}).Warn("Store needed repair before append; original backed up")
	}
	for _, url := range d.batchURLs {
		summary.Succeeded++
		if err := d.opts.Tracker.RecordOutcome(url, progress.OutcomeSucceeded); err != nil {
			return err
		}
	}
	d.opts.Log.WithFields(logrus.Fields{
		"appended": result.Appended,
		"store":    d.opts.StorePath,
	}).Info("Batch written")
	d.batch = nil
	d.batchURLs = nil
	return nil
}

func (d *Driver) finalize(summary *Summary) {
	d.opts.Tracker.SetCurrent("")
	if err := d.opts.Tracker.Flush(); err != nil {
		d.opts.Log.WithError(err).Warn("Failed to flush progress on exit")
	}
	d.opts.Log.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("Run complete")
}
