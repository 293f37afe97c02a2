package store

import (
	"github.com/roman628/tiktok-archiver/internal/model"
)

// minSanitizeTranscriptionLen filters out records whose transcription is too
// short to be useful downstream.
const minSanitizeTranscriptionLen = 40

// SanitizedRecord is the reduced projection exported for downstream
// consumers (training sets, analysis notebooks).
type SanitizedRecord struct {
	Uploader      string `json:"uploader"`
	Description   string `json:"description"`
	ViewCount     int    `json:"view_count"`
	LikeCount     int    `json:"like_count"`
	CommentCount  int    `json:"comment_count"`
	Transcription string `json:"transcription"`
	UploadDate    string `json:"upload_date"`
}

// Sanitize projects records with a transcription longer than the minimum
// into the reduced export shape.
func Sanitize(records []model.Record) []SanitizedRecord {
	out := make([]SanitizedRecord, 0, len(records))
	for _, rec := range records {
		text := rec.TranscriptionText()
		if len(text) <= minSanitizeTranscriptionLen {
			continue
		}
		out = append(out, SanitizedRecord{
			Uploader:      rec.Uploader,
			Description:   rec.Description,
			ViewCount:     intOrZero(rec.ViewCount),
			LikeCount:     intOrZero(rec.LikeCount),
			CommentCount:  intOrZero(rec.CommentCount),
			Transcription: text,
			UploadDate:    rec.UploadDate,
		})
	}
	return out
}

type SanitizeFileResult struct {
	OutputPath string `json:"output_path"`
	Input      int    `json:"input"`
	Exported   int    `json:"exported"`
}

// SanitizeFile writes the sanitized projection to a separate output file.
// The source store is read-only here; no backup is needed.
func SanitizeFile(path, outputPath string) (SanitizeFileResult, error) {
	loaded, err := Load(path)
	if err != nil {
		return SanitizeFileResult{}, err
	}

	sanitized := Sanitize(loaded.Records)
	if err := WriteJSON(outputPath, sanitized); err != nil {
		return SanitizeFileResult{}, err
	}
	return SanitizeFileResult{
		OutputPath: outputPath,
		Input:      len(loaded.Records),
		Exported:   len(sanitized),
	}, nil
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
