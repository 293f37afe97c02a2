package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roman628/tiktok-archiver/internal/model"
)

// RepairResult reports what a best-effort recovery salvaged. Discarded
// fragments are lost for good unless a backup exists, so the count is
// surfaced all the way to the user.
type RepairResult struct {
	Records   []model.Record
	Recovered int
	Discarded int
}

// Repair scans raw store bytes for top-level JSON objects and rebuilds a
// valid record list. It never fails: fragments that cannot be parsed are
// counted and dropped. The scan is line-based and assumes the store's
// pretty-printed layout; it is a recovery heuristic, not a parser.
func Repair(raw []byte) RepairResult {
	result := RepairResult{Records: []model.Record{}}

	var current []string
	depth := 0
	inObject := false

	finish := func() {
		text := strings.Join(current, "\n")
		current = nil
		inObject = false

		if rec, ok := parseFragment(text); ok {
			result.Records = append(result.Records, rec)
			result.Recovered++
			return
		}
		result.Discarded++
	}

	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)

		if !inObject {
			// The array opener may share a line with the first object.
			if strings.HasPrefix(trimmed, "[") {
				trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "["))
				line = trimmed
			}
			if !strings.HasPrefix(trimmed, "{") {
				continue
			}
			inObject = true
			depth = 0
			current = nil
		}

		current = append(current, line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			finish()
		}
	}

	// A truncated trailing object never returns to depth zero; give the
	// trailing-comma retry a chance anyway before discarding it.
	if inObject {
		finish()
	}

	return result
}

// parseFragment parses one accumulated object, retrying once without a
// trailing comma (the usual artifact of an interrupted append).
func parseFragment(text string) (model.Record, bool) {
	var rec model.Record
	if err := json.Unmarshal([]byte(text), &rec); err == nil {
		return rec, true
	}

	retried := strings.TrimRight(strings.TrimSpace(text), ",")
	if err := json.Unmarshal([]byte(retried), &rec); err == nil {
		return rec, true
	}
	return model.Record{}, false
}

// nonTrivialStore reports whether raw plausibly held real data. Repair
// output of zero records over such a file must never silently replace it.
func nonTrivialStore(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	if bytes.Equal(trimmed, []byte("[]")) {
		return false
	}
	return len(trimmed) > 4
}

// RepairFileOptions controls a repair pass over a store file on disk.
// Without OutputPath the repair happens in place: the original is backed up
// first and only replaced once the repaired JSON reparses cleanly.
type RepairFileOptions struct {
	Path       string
	OutputPath string
	// Force accepts a zero-record result over a non-trivially-sized store.
	Force bool
}

type RepairFileResult struct {
	OutputPath   string `json:"output_path"`
	BackupPath   string `json:"backup_path,omitempty"`
	Recovered    int    `json:"recovered"`
	Discarded    int    `json:"discarded"`
	AlreadyValid bool   `json:"already_valid"`
}

func RepairFile(opts RepairFileOptions) (RepairFileResult, error) {
	raw, err := readStoreBytes(opts.Path)
	if err != nil {
		return RepairFileResult{}, err
	}

	outputPath := strings.TrimSpace(opts.OutputPath)
	inPlace := outputPath == "" || outputPath == opts.Path
	if inPlace {
		outputPath = opts.Path
	}

	var records []model.Record
	if err := json.Unmarshal(raw, &records); err == nil {
		// Already valid; rewrite for stable formatting only.
		if err := writeRecords(outputPath, records); err != nil {
			return RepairFileResult{}, err
		}
		return RepairFileResult{
			OutputPath:   outputPath,
			Recovered:    len(records),
			AlreadyValid: true,
		}, nil
	}

	repaired := Repair(raw)
	if repaired.Recovered == 0 && nonTrivialStore(raw) && inPlace && !opts.Force {
		return RepairFileResult{}, fmt.Errorf(
			"repair of %s recovered nothing from %d bytes: refusing to replace real data with an empty store (use --force or a separate output path): %w",
			opts.Path, len(raw), ErrStoreCorrupt,
		)
	}

	result := RepairFileResult{
		OutputPath: outputPath,
		Recovered:  repaired.Recovered,
		Discarded:  repaired.Discarded,
	}

	if inPlace {
		backupPath, err := CreateBackup(opts.Path, "backup")
		if err != nil {
			return RepairFileResult{}, err
		}
		result.BackupPath = backupPath
	}

	data, err := json.MarshalIndent(repaired.Records, "", "  ")
	if err != nil {
		return RepairFileResult{}, fmt.Errorf("marshal repaired store for %s: %w", outputPath, err)
	}

	// Verify the repaired output reparses before it replaces anything.
	var verify []model.Record
	if err := json.Unmarshal(data, &verify); err != nil {
		return RepairFileResult{}, fmt.Errorf("repaired store for %s does not reparse: %w", outputPath, err)
	}

	if err := WriteBytes(outputPath, append(data, '\n')); err != nil {
		return RepairFileResult{}, err
	}
	return result, nil
}

func writeRecords(path string, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	return WriteJSON(path, records)
}
