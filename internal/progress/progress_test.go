package progress

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/roman628/tiktok-archiver/internal/model"
	"github.com/roman628/tiktok-archiver/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testPaths(t *testing.T) (progressPath, storePath string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "progress.json"), filepath.Join(dir, "videos.json")
}

func TestLoadWithoutFilesStartsEmpty(t *testing.T) {
	progressPath, storePath := testPaths(t)

	tr, err := Load(progressPath, storePath, 0, testLogger())
	require.NoError(t, err)

	require.False(t, tr.IsDuplicate("https://www.tiktok.com/@a/video/1"))
	counts := tr.Counts()
	require.Equal(t, 0, counts.ProcessedCount)
	require.NotNil(t, counts.FailedURLs)
}

func TestProcessedSetSeededFromStore(t *testing.T) {
	progressPath, storePath := testPaths(t)

	records := []model.Record{
		{URL: "https://www.tiktok.com/@a/video/1", Title: "one"},
		{URL: "https://www.tiktok.com/@a/video/2", Title: "two"},
	}
	require.NoError(t, store.WriteJSON(storePath, records))

	// An empty progress file must not cause already-stored URLs to refetch.
	require.NoError(t, os.WriteFile(progressPath, []byte(`{"processed_count": 0, "failed_urls": []}`), 0o644))

	tr, err := Load(progressPath, storePath, 0, testLogger())
	require.NoError(t, err)

	require.True(t, tr.IsDuplicate("https://www.tiktok.com/@a/video/1"))
	require.True(t, tr.IsDuplicate("https://www.tiktok.com/@a/video/2"))
	require.False(t, tr.IsDuplicate("https://www.tiktok.com/@a/video/3"))
}

func TestCorruptProgressFileDegradesToEmpty(t *testing.T) {
	progressPath, storePath := testPaths(t)
	require.NoError(t, os.WriteFile(progressPath, []byte("{not json"), 0o644))

	tr, err := Load(progressPath, storePath, 0, testLogger())
	require.NoError(t, err)
	require.Equal(t, 0, tr.Counts().ProcessedCount)
}

func TestRecordOutcomeCountersAndFlush(t *testing.T) {
	progressPath, storePath := testPaths(t)

	tr, err := Load(progressPath, storePath, 2, testLogger())
	require.NoError(t, err)

	tr.SetCurrent("https://www.tiktok.com/@a/video/1")
	require.NoError(t, tr.RecordOutcome("https://www.tiktok.com/@a/video/1", OutcomeSucceeded))

	// flushEvery is 2, so nothing on disk yet.
	_, statErr := os.Stat(progressPath)
	require.True(t, os.IsNotExist(statErr))

	require.NoError(t, tr.RecordOutcome("https://www.tiktok.com/@a/video/2", OutcomeFailed))

	raw, err := os.ReadFile(progressPath)
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &got))
	for _, key := range []string{
		"last_updated", "processed_count", "successful_count",
		"failed_count", "skipped_count", "failed_urls", "current_url",
	} {
		require.Contains(t, got, key)
	}

	var state State
	require.NoError(t, json.Unmarshal(raw, &state))
	require.Equal(t, 2, state.ProcessedCount)
	require.Equal(t, 1, state.SuccessfulCount)
	require.Equal(t, 1, state.FailedCount)
	require.Equal(t, []string{"https://www.tiktok.com/@a/video/2"}, state.FailedURLs)
}

func TestFailedURLsAreRetriedNextRun(t *testing.T) {
	progressPath, storePath := testPaths(t)

	tr, err := Load(progressPath, storePath, 0, testLogger())
	require.NoError(t, err)
	require.NoError(t, tr.RecordOutcome("https://www.tiktok.com/@a/video/9", OutcomeFailed))
	require.NoError(t, tr.Flush())

	reloaded, err := Load(progressPath, storePath, 0, testLogger())
	require.NoError(t, err)

	// Failed in a previous run, never stored: not a duplicate.
	require.False(t, reloaded.IsDuplicate("https://www.tiktok.com/@a/video/9"))
	require.Equal(t, []string{"https://www.tiktok.com/@a/video/9"}, reloaded.Counts().FailedURLs)
}

func TestRepeatedFailureRecordedOnce(t *testing.T) {
	progressPath, storePath := testPaths(t)

	tr, err := Load(progressPath, storePath, 0, testLogger())
	require.NoError(t, err)
	require.NoError(t, tr.RecordOutcome("https://www.tiktok.com/@a/video/9", OutcomeFailed))
	require.NoError(t, tr.RecordOutcome("https://www.tiktok.com/@a/video/9", OutcomeFailed))

	counts := tr.Counts()
	require.Equal(t, 2, counts.FailedCount)
	require.Equal(t, []string{"https://www.tiktok.com/@a/video/9"}, counts.FailedURLs)
}

func TestCurrentURLNullWhenIdle(t *testing.T) {
	progressPath, storePath := testPaths(t)

	tr, err := Load(progressPath, storePath, 0, testLogger())
	require.NoError(t, err)
	tr.SetCurrent("https://www.tiktok.com/@a/video/1")
	tr.SetCurrent("")
	require.NoError(t, tr.Flush())

	raw, err := os.ReadFile(progressPath)
	require.NoError(t, err)
	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "null", string(got["current_url"]))
}
