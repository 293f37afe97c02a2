package store

import (
	"sort"

	"github.com/roman628/tiktok-archiver/internal/model"
)

// DedupStats summarizes one deduplication pass. Every removed entry is
// counted; nothing is dropped silently.
type DedupStats struct {
	Input           int `json:"input"`
	Output          int `json:"output"`
	DuplicateGroups int `json:"duplicate_groups"`
	Removed         int `json:"removed"`
	Unkeyed         int `json:"unkeyed"`
}

// Deduplicate resolves duplicate groups by natural key. For each URL the
// single highest-scoring record survives; ties keep the first occurrence,
// so the result is deterministic for any input order. Whole records
// compete: losing duplicates are discarded entirely, never field-merged.
// Records without a URL pass through untouched after the keyed ones.
func Deduplicate(records []model.Record, scorer model.Scorer) ([]model.Record, DedupStats) {
	stats := DedupStats{Input: len(records)}

	type winner struct {
		index  int
		record model.Record
		score  int
		copies int
	}

	order := make([]string, 0, len(records))
	byURL := make(map[string]*winner, len(records))
	var unkeyed []model.Record

	for i, rec := range records {
		if !rec.HasURL() {
			unkeyed = append(unkeyed, rec)
			stats.Unkeyed++
			continue
		}
		current, seen := byURL[rec.URL]
		if !seen {
			order = append(order, rec.URL)
			byURL[rec.URL] = &winner{index: i, record: rec, score: scorer.Score(rec), copies: 1}
			continue
		}
		current.copies++
		// Strictly greater keeps the first occurrence on ties.
		if score := scorer.Score(rec); score > current.score {
			current.record = rec
			current.score = score
		}
	}

	out := make([]model.Record, 0, len(order)+len(unkeyed))
	for _, url := range order {
		w := byURL[url]
		out = append(out, w.record)
		if w.copies > 1 {
			stats.DuplicateGroups++
			stats.Removed += w.copies - 1
		}
	}
	out = append(out, unkeyed...)
	stats.Output = len(out)
	return out, stats
}

// SortByURL orders records by natural key for reproducible diffs. Unkeyed
// records sort first (empty key), matching the legacy cleanup output.
func SortByURL(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].URL < records[j].URL
	})
}

type DedupFileResult struct {
	OutputPath string     `json:"output_path"`
	BackupPath string     `json:"backup_path,omitempty"`
	Stats      DedupStats `json:"stats"`
}

// DeduplicateFile runs a dedup pass over a store file. In-place rewrites
// back up the original first; output is sorted by URL and written through
// the atomic-replace discipline.
func DeduplicateFile(path, outputPath string, scorer model.Scorer) (DedupFileResult, error) {
	loaded, err := Load(path)
	if err != nil {
		return DedupFileResult{}, err
	}

	unique, stats := Deduplicate(loaded.Records, scorer)
	SortByURL(unique)

	inPlace := outputPath == "" || outputPath == path
	if inPlace {
		outputPath = path
	}

	result := DedupFileResult{OutputPath: outputPath, Stats: stats}
	if inPlace {
		backupPath, err := CreateBackup(path, "before_dedup")
		if err != nil {
			return DedupFileResult{}, err
		}
		result.BackupPath = backupPath
	}

	if err := writeRecords(outputPath, unique); err != nil {
		return DedupFileResult{}, err
	}
	return result, nil
}
