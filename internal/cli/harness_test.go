package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roman628/tiktok-archiver/internal/store"
)

// chdir switches to dir for the duration of the test (t.Chdir needs Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}

// installFakeYTDLP puts a yt-dlp stand-in on PATH that answers -J metadata
// requests with a URL-derived info dictionary.
func installFakeYTDLP(t *testing.T, tmp string) {
	t.Helper()
	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}

	ytScript := `#!/usr/bin/env bash
set -euo pipefail
if printf '%s ' "$@" | grep -q -- '-J'; then
  for last; do :; done
  printf '{"id":"%s","title":"video %s","webpage_url":"%s","uploader":"creator","upload_date":"20240101","view_count":10,"like_count":2,"duration":30}' \
    "${last##*/}" "${last##*/}" "$last"
  exit 0
fi
echo "unexpected yt-dlp invocation" >&2
exit 1
`
	if err := os.WriteFile(filepath.Join(fakeBin, "yt-dlp"), []byte(ytScript), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	// Keep the pacing limiter out of the test's way.
	t.Setenv("ARCHIVE_REQUESTS_PER_MINUTE", "6000")
}

func TestHarnessCollectResumes(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)
	installFakeYTDLP(t, tmp)

	urlsPath := filepath.Join(tmp, "urls.txt")
	urls := "https://www.tiktok.com/@a/video/101\nhttps://www.tiktok.com/@a/video/102\n"
	if err := os.WriteFile(urlsPath, []byte(urls), 0o644); err != nil {
		t.Fatal(err)
	}

	storePath := filepath.Join(tmp, "videos.json")
	progressPath := filepath.Join(tmp, "progress.json")
	collectArgs := []string{
		"collect",
		"--urls", urlsPath,
		"--store", storePath,
		"--progress", progressPath,
		"--log-level", "error",
	}

	if err := Run(collectArgs); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	loaded, err := store.Load(storePath)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(loaded.Records))
	}
	if loaded.Records[0].Uploader != "creator" {
		t.Fatalf("unexpected record: %+v", loaded.Records[0])
	}
	if _, err := os.Stat(progressPath); err != nil {
		t.Fatalf("progress file not written: %v", err)
	}

	// Second run skips everything already in the store.
	if err := Run(collectArgs); err != nil {
		t.Fatalf("second collect failed: %v", err)
	}
	loaded, err = store.Load(storePath)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Records) != 2 {
		t.Fatalf("expected 2 records after resume, got %d", len(loaded.Records))
	}
}

func TestHarnessCollectMarksSourceList(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)
	installFakeYTDLP(t, tmp)

	urlsPath := filepath.Join(tmp, "urls.txt")
	urls := "https://www.tiktok.com/@a/video/104\nhttps://www.tiktok.com/@a/video/105\n"
	if err := os.WriteFile(urlsPath, []byte(urls), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Run([]string{
		"collect",
		"--urls", urlsPath,
		"--store", filepath.Join(tmp, "videos.json"),
		"--progress", filepath.Join(tmp, "progress.json"),
		"--mark-source",
		"--log-level", "error",
	}); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	raw, err := os.ReadFile(urlsPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "-https://www.tiktok.com/@a/video/104\n-https://www.tiktok.com/@a/video/105\n"
	if string(raw) != want {
		t.Fatalf("source list not marked:\ngot  %q\nwant %q", raw, want)
	}
}

func TestHarnessCollectFiltersNonTikTok(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)
	installFakeYTDLP(t, tmp)

	urlsPath := filepath.Join(tmp, "urls.txt")
	urls := "https://example.com/watch/1\nhttps://www.tiktok.com/@a/video/103\n"
	if err := os.WriteFile(urlsPath, []byte(urls), 0o644); err != nil {
		t.Fatal(err)
	}

	storePath := filepath.Join(tmp, "videos.json")
	if err := Run([]string{
		"collect",
		"--urls", urlsPath,
		"--store", storePath,
		"--progress", filepath.Join(tmp, "progress.json"),
		"--log-level", "error",
	}); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	loaded, err := store.Load(storePath)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Records) != 1 {
		t.Fatalf("expected only the tiktok url collected, got %d records", len(loaded.Records))
	}
}
