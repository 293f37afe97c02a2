package source

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/roman628/tiktok-archiver/internal/store"
)

// List is the parsed view of a plain-text URL list, one URL per line.
// A leading "-" is a legacy in-band completion marker; new runs should
// rely on the progress tracker instead, but lists written by older tools
// must keep reading correctly.
type List struct {
	Pending   []string
	Processed []string
}

// ReadList parses the list file at path. Blank lines and comment lines
// starting with "#" are skipped.
func ReadList(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return List{}, fmt.Errorf("open url list %s: %w", path, err)
	}
	defer f.Close()

	var list List
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "-"); ok {
			url := strings.TrimSpace(rest)
			if url != "" {
				list.Processed = append(list.Processed, url)
			}
			continue
		}
		list.Pending = append(list.Pending, line)
	}
	if err := scanner.Err(); err != nil {
		return List{}, fmt.Errorf("read url list %s: %w", path, err)
	}
	return list, nil
}

// WriteList writes pending then processed entries atomically, preserving
// the legacy "-" marker on processed lines.
func WriteList(path string, list List) error {
	var b strings.Builder
	for _, url := range list.Pending {
		b.WriteString(url)
		b.WriteByte('\n')
	}
	for _, url := range list.Processed {
		b.WriteString("-")
		b.WriteString(url)
		b.WriteByte('\n')
	}
	return store.WriteBytes(path, []byte(b.String()))
}

// MarkProcessed moves url from the pending section to the processed
// section and rewrites the list atomically. Unknown URLs are a no-op.
// This exists only for compatibility with lists consumed by older tools;
// it mutates the caller's input file, so the progress tracker is the
// preferred mechanism.
func MarkProcessed(path, url string) error {
	list, err := ReadList(path)
	if err != nil {
		return err
	}
	found := false
	pending := list.Pending[:0]
	for _, u := range list.Pending {
		if u == url && !found {
			found = true
			continue
		}
		pending = append(pending, u)
	}
	if !found {
		return nil
	}
	list.Pending = pending
	list.Processed = append(list.Processed, url)
	return WriteList(path, list)
}

// MergeResult reports a multi-file merge.
type MergeResult struct {
	PerFile    map[string]int
	Unique     []string
	Duplicates int
}

// MergeLists reads every list, drops completion markers, and returns the
// sorted union of URLs with per-file line counts.
func MergeLists(paths []string) (MergeResult, error) {
	result := MergeResult{PerFile: map[string]int{}}
	seen := map[string]bool{}
	for _, path := range paths {
		list, err := ReadList(path)
		if err != nil {
			return MergeResult{}, err
		}
		urls := append(append([]string{}, list.Pending...), list.Processed...)
		result.PerFile[path] = len(urls)
		for _, url := range urls {
			if seen[url] {
				result.Duplicates++
				continue
			}
			seen[url] = true
			result.Unique = append(result.Unique, url)
		}
	}
	sort.Strings(result.Unique)
	return result, nil
}

// IsTikTokURL reports whether url plausibly points at a TikTok video.
func IsTikTokURL(url string) bool {
	return strings.Contains(url, "tiktok.com")
}
