package store

import (
	"github.com/roman628/tiktok-archiver/internal/model"
)

// CleanSplit partitions records for the no-transcription cleanup. Unkeyed
// records are never removed by cleanup passes.
type CleanSplit struct {
	Kept    []model.Record
	Removed []model.Record
	Unkeyed int
}

// SplitByTranscription separates keyed records with transcription text from
// those without. Records lacking a URL are kept regardless.
func SplitByTranscription(records []model.Record) CleanSplit {
	split := CleanSplit{Kept: []model.Record{}, Removed: []model.Record{}}
	for _, rec := range records {
		if !rec.HasURL() {
			split.Kept = append(split.Kept, rec)
			split.Unkeyed++
			continue
		}
		if rec.HasTranscription() {
			split.Kept = append(split.Kept, rec)
			continue
		}
		split.Removed = append(split.Removed, rec)
	}
	return split
}

type CleanFileResult struct {
	OutputPath string `json:"output_path"`
	BackupPath string `json:"backup_path,omitempty"`
	Input      int    `json:"input"`
	Kept       int    `json:"kept"`
	Removed    int    `json:"removed"`
}

// CleanFile removes records without transcription from a store file,
// sorted by URL, with the usual backup-then-atomic-replace discipline for
// in-place rewrites.
func CleanFile(path, outputPath string) (CleanFileResult, error) {
	loaded, err := Load(path)
	if err != nil {
		return CleanFileResult{}, err
	}

	split := SplitByTranscription(loaded.Records)
	SortByURL(split.Kept)

	inPlace := outputPath == "" || outputPath == path
	if inPlace {
		outputPath = path
	}

	result := CleanFileResult{
		OutputPath: outputPath,
		Input:      len(loaded.Records),
		Kept:       len(split.Kept),
		Removed:    len(split.Removed),
	}
	if inPlace {
		backupPath, err := CreateBackup(path, "before_clean")
		if err != nil {
			return CleanFileResult{}, err
		}
		result.BackupPath = backupPath
	}

	if err := writeRecords(outputPath, split.Kept); err != nil {
		return CleanFileResult{}, err
	}
	return result, nil
}
