package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roman628/tiktok-archiver/internal/model"
)

func TestRepairRecoversFromMissingClosingBracket(t *testing.T) {
	raw := []byte("[{\"url\":\"http://x/1\",\"title\":\"a\"},\n{\"url\":\"http://x/2\",\"title\":\"b\"}")

	result := Repair(raw)
	if result.Recovered != 2 {
		t.Fatalf("expected 2 recovered records, got %d", result.Recovered)
	}
	if result.Discarded != 0 {
		t.Fatalf("expected 0 discarded fragments, got %d", result.Discarded)
	}
	if result.Records[0].URL != "http://x/1" || result.Records[0].Title != "a" {
		t.Fatalf("unexpected first record: %+v", result.Records[0])
	}
	if result.Records[1].URL != "http://x/2" || result.Records[1].Title != "b" {
		t.Fatalf("unexpected second record: %+v", result.Records[1])
	}
}

func TestRepairDropsTruncatedTrailingObject(t *testing.T) {
	records := []model.Record{
		{URL: "http://x/1", Title: "one"},
		{URL: "http://x/2", Title: "two"},
		{URL: "http://x/3", Title: "three"},
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		t.Fatal(err)
	}

	// Cut the file off mid-way through the last object, as an interrupted
	// append would.
	cut := strings.LastIndex(string(data), "\"url\": \"http://x/3\"")
	truncated := data[:cut+12]

	result := Repair(truncated)
	if result.Recovered != 2 {
		t.Fatalf("expected 2 recovered records, got %d", result.Recovered)
	}
	if result.Discarded != 1 {
		t.Fatalf("expected 1 discarded fragment, got %d", result.Discarded)
	}
}

func TestRepairStripsSingleTrailingComma(t *testing.T) {
	raw := []byte("{\"url\":\"http://x/1\"},")

	result := Repair(raw)
	if result.Recovered != 1 || result.Discarded != 0 {
		t.Fatalf("expected single recovery, got recovered=%d discarded=%d", result.Recovered, result.Discarded)
	}
}

func TestRepairNeverFailsOnGarbage(t *testing.T) {
	result := Repair([]byte("{not json at all\nstill not json"))
	if result.Recovered != 0 {
		t.Fatalf("expected nothing recovered, got %d", result.Recovered)
	}
	if result.Discarded != 1 {
		t.Fatalf("expected 1 discarded fragment, got %d", result.Discarded)
	}
}

func TestRepairFileBacksUpBeforeInPlaceRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.json")
	corrupt := "[\n  {\"url\": \"http://x/1\", \"title\": \"a\"},\n  {\"url\": \"http://x/2\", \"ti"
	if err := os.WriteFile(path, []byte(corrupt), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := RepairFile(RepairFileOptions{Path: path})
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if result.Recovered != 1 || result.Discarded != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.BackupPath == "" {
		t.Fatal("expected a backup path")
	}

	backup, err := os.ReadFile(result.BackupPath)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(backup) != corrupt {
		t.Fatal("backup does not match the original corrupt bytes")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load repaired store: %v", err)
	}
	if len(loaded.Records) != 1 || loaded.Records[0].URL != "http://x/1" {
		t.Fatalf("unexpected repaired records: %+v", loaded.Records)
	}
}

func TestRepairFileRefusesEmptyResultOverRealData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.json")
	garbage := strings.Repeat("this was once real data but is now noise\n", 50)
	if err := os.WriteFile(path, []byte(garbage), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := RepairFile(RepairFileOptions{Path: path}); !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt, got %v", err)
	}

	// The original must be untouched after the refusal.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != garbage {
		t.Fatal("original file was modified despite refusal")
	}

	// A distinct output path is allowed to hold the empty result.
	outPath := filepath.Join(dir, "recovered.json")
	result, err := RepairFile(RepairFileOptions{Path: path, OutputPath: outPath})
	if err != nil {
		t.Fatalf("repair to separate output failed: %v", err)
	}
	if result.Recovered != 0 {
		t.Fatalf("expected 0 recovered, got %d", result.Recovered)
	}
}

func TestRepairFileAlreadyValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.json")
	if err := WriteJSON(path, []model.Record{{URL: "http://x/1"}}); err != nil {
		t.Fatal(err)
	}

	result, err := RepairFile(RepairFileOptions{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if !result.AlreadyValid || result.Recovered != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.BackupPath != "" {
		t.Fatal("valid stores should not be backed up")
	}
}
