package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roman628/tiktok-archiver/internal/store"
)

// Outcome is the per-item result a run records.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// State is the on-disk progress document. It lives in a small file separate
// from the store so a corrupted progress file never endangers collected
// data; losing it costs at most some duplicate-check bookkeeping.
type State struct {
	LastUpdated     string   `json:"last_updated"`
	ProcessedCount  int      `json:"processed_count"`
	SuccessfulCount int      `json:"successful_count"`
	FailedCount     int      `json:"failed_count"`
	SkippedCount    int      `json:"skipped_count"`
	FailedURLs      []string `json:"failed_urls"`
	CurrentURL      *string  `json:"current_url"`
}

// Tracker persists progress across interrupted runs. The store itself is
// the source of truth for what was collected; the tracker's processed set
// is seeded from the store's URLs at load, so a reset progress file never
// causes a refetch of something already stored.
type Tracker struct {
	path       string
	flushEvery int

	processed map[string]bool
	failed    map[string]bool
	state     State

	sinceFlush int
	log        *logrus.Logger
}

// DefaultFlushEvery bounds progress-bookkeeping loss on abrupt termination.
const DefaultFlushEvery = 5

// Load builds a tracker for progressPath, seeding the processed set from
// the store at storePath. A missing or corrupt progress file degrades to
// empty state with a warning; a missing store means nothing was collected
// yet.
func Load(progressPath, storePath string, flushEvery int, log *logrus.Logger) (*Tracker, error) {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	t := &Tracker{
		path:       progressPath,
		flushEvery: flushEvery,
		processed:  map[string]bool{},
		failed:     map[string]bool{},
		state:      State{FailedURLs: []string{}},
		log:        log,
	}

	loaded, err := store.LoadOrEmpty(storePath)
	if err != nil {
		return nil, fmt.Errorf("seed processed set from store: %w", err)
	}
	for url := range store.URLSet(loaded.Records) {
		t.processed[url] = true
	}
	log.WithFields(logrus.Fields{
		"store":          storePath,
		"processed_urls": len(t.processed),
	}).Debug("Seeded processed set from store")

	raw, err := os.ReadFile(progressPath)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress file %s: %w", progressPath, err)
	}

	var prior State
	if err := json.Unmarshal(raw, &prior); err != nil {
		// Non-fatal by design: progress is an accelerator, not the truth.
		log.WithError(err).WithField("path", progressPath).Warn("Progress file is corrupt, starting from empty progress")
		return t, nil
	}

	t.state = prior
	if t.state.FailedURLs == nil {
		t.state.FailedURLs = []string{}
	}
	for _, url := range t.state.FailedURLs {
		t.failed[url] = true
	}
	return t, nil
}

// IsDuplicate reports whether url has already been processed, consulting
// the store-seeded set. Failed URLs are deliberately not duplicates: they
// are retried on the next run.
func (t *Tracker) IsDuplicate(url string) bool {
	return t.processed[url]
}

// SetCurrent records the in-flight url for crash diagnosis.
func (t *Tracker) SetCurrent(url string) {
	if url == "" {
		t.state.CurrentURL = nil
		return
	}
	u := url
	t.state.CurrentURL = &u
}

// RecordOutcome marks url processed for this run and updates counters. The
// state is flushed every flushEvery outcomes; between flushes at most that
// many outcomes of bookkeeping can be lost, never collected records.
func (t *Tracker) RecordOutcome(url string, outcome Outcome) error {
	t.processed[url] = true
	t.state.ProcessedCount = len(t.processed)

	switch outcome {
	case OutcomeSucceeded:
		t.state.SuccessfulCount++
	case OutcomeFailed:
		t.state.FailedCount++
		if !t.failed[url] {
			t.failed[url] = true
			t.state.FailedURLs = append(t.state.FailedURLs, url)
		}
	case OutcomeSkipped:
		t.state.SkippedCount++
	default:
		return fmt.Errorf("unknown outcome %q for %s", outcome, url)
	}

	t.sinceFlush++
	if t.sinceFlush >= t.flushEvery {
		return t.Flush()
	}
	return nil
}

// Counts returns the current counters.
func (t *Tracker) Counts() State {
	state := t.state
	state.FailedURLs = append([]string(nil), t.state.FailedURLs...)
	return state
}

// Flush persists the state atomically.
func (t *Tracker) Flush() error {
	t.state.LastUpdated = time.Now().Format(time.RFC3339)
	if t.state.FailedURLs == nil {
		t.state.FailedURLs = []string{}
	}
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress state: %w", err)
	}
	if err := store.WriteBytes(t.path, append(data, '\n')); err != nil {
		return err
	}
	t.sinceFlush = 0
	return nil
}
