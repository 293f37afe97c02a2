package store

import (
	"github.com/roman628/tiktok-archiver/internal/model"
)

// Stats is the coverage summary of a store.
type Stats struct {
	Total             int `json:"total"`
	UniqueURLs        int `json:"unique_urls"`
	DuplicateURLs     int `json:"duplicate_urls"`
	Unkeyed           int `json:"unkeyed"`
	WithComments      int `json:"with_comments"`
	WithTranscription int `json:"with_transcription"`
	Downloaded        int `json:"downloaded"`
	TotalComments     int `json:"total_comments"`
}

// Summarize computes store coverage counts without mutating anything.
func Summarize(records []model.Record) Stats {
	stats := Stats{Total: len(records)}
	seen := make(map[string]int, len(records))

	for _, rec := range records {
		if !rec.HasURL() {
			stats.Unkeyed++
		} else {
			seen[rec.URL]++
		}
		if rec.CommentsExtracted && len(rec.TopComments) > 0 {
			stats.WithComments++
			stats.TotalComments += len(rec.TopComments)
		}
		if rec.HasTranscription() {
			stats.WithTranscription++
		}
		if rec.DownloadedAt != "" {
			stats.Downloaded++
		}
	}

	stats.UniqueURLs = len(seen)
	for _, n := range seen {
		if n > 1 {
			stats.DuplicateURLs++
		}
	}
	return stats
}
