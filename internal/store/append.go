package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/roman628/tiktok-archiver/internal/model"
)

// AppendResult reports one append operation against the store.
type AppendResult struct {
	Appended int
	Created  bool
	// Spliced is set when the existing array was reused byte-for-byte
	// instead of being decoded and re-marshaled.
	Spliced bool
	// Repaired is set when the existing store could not be parsed and the
	// rewrite went through repair. The pre-repair bytes are saved to
	// BackupPath and Discarded counts the fragments repair dropped.
	Repaired   bool
	Discarded  int
	BackupPath string
}

// Append adds records to the store file. The observable effect is an updated
// store; an interrupted append leaves the original byte-for-byte unchanged
// because all writing happens in a temp file that is renamed over the store
// only once it holds a complete, closed JSON array.
//
// For an existing well-formed store the existing array bytes are spliced
// as-is and only the new records are marshaled, so append cost does not
// grow with decode time of the whole store. A store that is missing, empty,
// or not a clean array falls back to a full load (with repair) and rewrite.
func Append(records []model.Record, path string) (AppendResult, error) {
	if len(records) == 0 {
		return AppendResult{}, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := WriteJSON(path, records); err != nil {
			return AppendResult{}, err
		}
		return AppendResult{Appended: len(records), Created: true}, nil
	}
	if err != nil {
		return AppendResult{}, fmt.Errorf("read store %s: %w", path, err)
	}

	if out, ok := spliceArray(raw, records); ok {
		if !json.Valid(out) {
			return AppendResult{}, fmt.Errorf("append to %s produced invalid JSON, store left untouched", path)
		}
		if err := WriteBytes(path, out); err != nil {
			return AppendResult{}, err
		}
		return AppendResult{Appended: len(records), Spliced: true}, nil
	}

	// Slow path: decode (repairing if needed) and rewrite in full.
	loaded, err := Load(path)
	if err != nil {
		return AppendResult{}, err
	}
	result := AppendResult{Appended: len(records)}
	if loaded.Repaired {
		// The rewrite destroys the unparseable original, so keep a copy
		// of it first and report what repair could not recover.
		backupPath, err := CreateBackup(path, "before_append_repair")
		if err != nil {
			return AppendResult{}, err
		}
		result.Repaired = true
		result.Discarded = loaded.Discarded
		result.BackupPath = backupPath
	}
	merged := append(loaded.Records, records...)
	if err := WriteJSON(path, merged); err != nil {
		return AppendResult{}, err
	}
	return result, nil
}

// spliceArray rebuilds the store as existing-items + new records without
// decoding the existing items. It only succeeds when raw is exactly one
// well-formed top-level array.
func spliceArray(raw []byte, records []model.Record) ([]byte, bool) {
	start, end, ok := arrayBounds(raw)
	if !ok {
		return nil, false
	}

	var buf bytes.Buffer
	buf.Grow(len(raw) + 256*len(records))

	existing := bytes.TrimRight(raw[:end], " \t\r\n")
	hasItems := len(bytes.TrimSpace(raw[start+1:end])) > 0
	buf.Write(existing)
	if hasItems {
		buf.WriteString(",")
	}
	buf.WriteString("\n")

	for i, rec := range records {
		data, err := json.MarshalIndent(rec, "  ", "  ")
		if err != nil {
			return nil, false
		}
		buf.WriteString("  ")
		buf.Write(data)
		if i < len(records)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	return buf.Bytes(), true
}

// arrayBounds locates the top-level array's brackets, tracking strings and
// escapes so brackets inside values do not fool the scan.
func arrayBounds(raw []byte) (start, end int, ok bool) {
	i := 0
	for i < len(raw) && isJSONSpace(raw[i]) {
		i++
	}
	if i >= len(raw) || raw[i] != '[' {
		return 0, 0, false
	}
	start = i

	depth := 0
	inString := false
	escaped := false
	for ; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				if c != ']' {
					return 0, 0, false
				}
				// Nothing but whitespace may follow the array.
				for j := i + 1; j < len(raw); j++ {
					if !isJSONSpace(raw[j]) {
						return 0, 0, false
					}
				}
				return start, i, true
			}
		}
	}
	return 0, 0, false
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
