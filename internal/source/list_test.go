package source

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	return path
}

func TestReadListSkipsBlanksAndMarkers(t *testing.T) {
	path := writeList(t, "https://www.tiktok.com/@a/video/1\n\n# note\n-https://www.tiktok.com/@a/video/2\nhttps://www.tiktok.com/@a/video/3\n")

	list, err := ReadList(path)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	wantPending := []string{"https://www.tiktok.com/@a/video/1", "https://www.tiktok.com/@a/video/3"}
	if !reflect.DeepEqual(list.Pending, wantPending) {
		t.Fatalf("unexpected pending: got %v want %v", list.Pending, wantPending)
	}
	wantProcessed := []string{"https://www.tiktok.com/@a/video/2"}
	if !reflect.DeepEqual(list.Processed, wantProcessed) {
		t.Fatalf("unexpected processed: got %v want %v", list.Processed, wantProcessed)
	}
}

func TestMarkProcessedRoundTrip(t *testing.T) {
	path := writeList(t, "https://www.tiktok.com/@a/video/1\nhttps://www.tiktok.com/@a/video/2\n")

	if err := MarkProcessed(path, "https://www.tiktok.com/@a/video/1"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	list, err := ReadList(path)
	if err != nil {
		t.Fatalf("reread list: %v", err)
	}
	if len(list.Pending) != 1 || list.Pending[0] != "https://www.tiktok.com/@a/video/2" {
		t.Fatalf("unexpected pending after mark: %v", list.Pending)
	}
	if len(list.Processed) != 1 || list.Processed[0] != "https://www.tiktok.com/@a/video/1" {
		t.Fatalf("unexpected processed after mark: %v", list.Processed)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw list: %v", err)
	}
	want := "https://www.tiktok.com/@a/video/2\n-https://www.tiktok.com/@a/video/1\n"
	if string(raw) != want {
		t.Fatalf("unexpected raw list:\n%s", raw)
	}
}

func TestMarkProcessedUnknownURLIsNoop(t *testing.T) {
	path := writeList(t, "https://www.tiktok.com/@a/video/1\n")
	before, _ := os.ReadFile(path)

	if err := MarkProcessed(path, "https://www.tiktok.com/@a/video/9"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Fatalf("list changed for unknown url:\n%s", after)
	}
}

func TestMergeListsDedupesAndSorts(t *testing.T) {
	a := writeList(t, "https://www.tiktok.com/@a/video/2\nhttps://www.tiktok.com/@a/video/1\n")
	b := writeList(t, "-https://www.tiktok.com/@a/video/1\nhttps://www.tiktok.com/@a/video/3\n")

	result, err := MergeLists([]string{a, b})
	if err != nil {
		t.Fatalf("merge lists: %v", err)
	}
	want := []string{
		"https://www.tiktok.com/@a/video/1",
		"https://www.tiktok.com/@a/video/2",
		"https://www.tiktok.com/@a/video/3",
	}
	if !reflect.DeepEqual(result.Unique, want) {
		t.Fatalf("unexpected merge output: %v", result.Unique)
	}
	if result.Duplicates != 1 {
		t.Fatalf("unexpected duplicate count: %d", result.Duplicates)
	}
	if result.PerFile[a] != 2 || result.PerFile[b] != 2 {
		t.Fatalf("unexpected per-file counts: %v", result.PerFile)
	}
}

func TestIsTikTokURL(t *testing.T) {
	if !IsTikTokURL("https://www.tiktok.com/@a/video/1") {
		t.Fatalf("expected tiktok url to match")
	}
	if IsTikTokURL("https://example.com/watch") {
		t.Fatalf("did not expect non-tiktok url to match")
	}
}
