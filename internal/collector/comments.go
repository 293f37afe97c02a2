package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/roman628/tiktok-archiver/internal/store"
)

// UpdateCommentsOptions configures a comment backfill pass over an
// existing store.
type UpdateCommentsOptions struct {
	StorePath   string
	Fetcher     CommentFetcher
	MaxComments int
	MaxReplies  int
	SaveEvery   int
	ItemTimeout time.Duration
	Limiter     *rate.Limiter
	Log         *logrus.Logger
}

type UpdateCommentsSummary struct {
	Total       int
	AlreadyHad  int
	Updated     int
	Failed      int
	Interrupted bool
}

// UpdateComments walks the store and fetches comments for every record
// that does not have them yet, mutating records in place. The store is
// rewritten atomically every SaveEvery updates and once at the end, after
// a single timestamped backup of the original.
func UpdateComments(ctx context.Context, opts UpdateCommentsOptions) (UpdateCommentsSummary, error) {
	if opts.Fetcher == nil {
		return UpdateCommentsSummary{}, fmt.Errorf("comment fetcher is required")
	}
	if opts.Log == nil {
		return UpdateCommentsSummary{}, fmt.Errorf("logger is required")
	}
	if opts.MaxComments <= 0 {
		opts.MaxComments = defaultMaxComments
	}
	if opts.MaxReplies <= 0 {
		opts.MaxReplies = defaultMaxReplies
	}
	if opts.SaveEvery <= 0 {
		opts.SaveEvery = 10
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = defaultItemTimeout
	}

	lock, err := store.AcquireLock(opts.StorePath)
	if err != nil {
		return UpdateCommentsSummary{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			opts.Log.WithError(err).Warn("Failed to release store lock")
		}
	}()

	loaded, err := store.Load(opts.StorePath)
	if err != nil {
		return UpdateCommentsSummary{}, err
	}
	records := loaded.Records

	summary := UpdateCommentsSummary{Total: len(records)}
	backedUp := false
	dirty := 0

	save := func() error {
		if dirty == 0 {
			return nil
		}
		if !backedUp {
			if _, err := store.CreateBackup(opts.StorePath, "before_comments"); err != nil {
				return err
			}
			backedUp = true
		}
		if err := store.WriteJSON(opts.StorePath, records); err != nil {
			return err
		}
		dirty = 0
		return nil
	}

	for i := range records {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		rec := &records[i]
		if !rec.HasURL() {
			continue
		}
		if rec.CommentsExtracted || len(rec.TopComments) > 0 {
			summary.AlreadyHad++
			continue
		}

		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				summary.Interrupted = true
				break
			}
		}

		itemCtx, cancel := context.WithTimeout(ctx, opts.ItemTimeout)
		comments, err := opts.Fetcher.FetchComments(itemCtx, rec.URL, opts.MaxComments, opts.MaxReplies)
		cancel()
		if err != nil {
			summary.Failed++
			opts.Log.WithError(err).WithField("url", rec.URL).Warn("Comment extraction failed")
			continue
		}

		rec.CommentsExtracted = true
		rec.TopComments = comments
		rec.CommentsExtractedAt = time.Now().Format(time.RFC3339)
		summary.Updated++
		dirty++

		if dirty >= opts.SaveEvery {
			if err := save(); err != nil {
				return summary, fmt.Errorf("save store %s: %w", opts.StorePath, err)
			}
			opts.Log.WithFields(logrus.Fields{
				"updated": summary.Updated,
				"total":   summary.Total,
			}).Info("Progress saved")
		}
	}

	if err := save(); err != nil {
		return summary, fmt.Errorf("save store %s: %w", opts.StorePath, err)
	}
	return summary, nil
}
