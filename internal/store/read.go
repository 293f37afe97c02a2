package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/roman628/tiktok-archiver/internal/model"
)

// ErrStoreCorrupt marks a store that could not be read even after repair.
var ErrStoreCorrupt = errors.New("store corrupt")

// LoadResult carries the records plus how they were obtained. Load never
// persists anything; when Repaired is set, callers decide whether to write
// the recovered records back (through the atomic-replace discipline).
type LoadResult struct {
	Records   []model.Record
	Repaired  bool
	Discarded int
}

// Load reads the store with a strict parse first, falling back to the
// repairer on corruption. It fails with ErrStoreCorrupt only when repair of
// a non-trivially-sized file yields nothing, since handing an empty record
// set to a caller that later rewrites the store would silently destroy data.
func Load(path string) (LoadResult, error) {
	raw, err := readStoreBytes(path)
	if err != nil {
		return LoadResult{}, err
	}

	var records []model.Record
	if err := json.Unmarshal(raw, &records); err == nil {
		if records == nil {
			records = []model.Record{}
		}
		return LoadResult{Records: records}, nil
	}

	// Some early store files held a single object instead of an array.
	var single model.Record
	if err := json.Unmarshal(raw, &single); err == nil {
		return LoadResult{Records: []model.Record{single}, Repaired: true}, nil
	}

	repaired := Repair(raw)
	if repaired.Recovered == 0 && nonTrivialStore(raw) {
		return LoadResult{}, fmt.Errorf("load %s: repair recovered none of %d bytes: %w", path, len(raw), ErrStoreCorrupt)
	}
	return LoadResult{
		Records:   repaired.Records,
		Repaired:  true,
		Discarded: repaired.Discarded,
	}, nil
}

// LoadOrEmpty treats a missing store as empty; any other failure is real.
func LoadOrEmpty(path string) (LoadResult, error) {
	result, err := Load(path)
	if err != nil && os.IsNotExist(errors.Unwrap(err)) {
		return LoadResult{Records: []model.Record{}}, nil
	}
	return result, err
}

// URLSet returns the distinct natural keys present in records.
func URLSet(records []model.Record) map[string]bool {
	urls := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.HasURL() {
			urls[rec.URL] = true
		}
	}
	return urls
}

func readStoreBytes(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read store %s: %w", path, err)
	}
	return raw, nil
}
