package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// Transcription is the canonical transcription shape. Source records which
// legacy field the text was folded from, so re-runs can tell a whisper pass
// from platform subtitles.
type Transcription struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Legacy stores named the transcription field half a dozen different ways.
// Folding follows this priority order; the first populated field wins and
// all legacy spellings are dropped from the record afterwards.
var legacyTranscriptionKeys = []string{
	"transcription",
	"subtitle_transcription",
	"whisper_transcription",
	"custom_transcription",
	"subtitle",
	"subtitles",
}

// foldTranscription extracts the canonical transcription from a raw field
// map, consuming every legacy transcription spelling it finds. The canonical
// {source, text} object form is honored first; otherwise the legacy priority
// list decides, and any remaining key containing "transcript" (in sorted
// order) is the last resort.
func foldTranscription(raw map[string]json.RawMessage) *Transcription {
	var result *Transcription

	if v, ok := raw["transcription"]; ok {
		var canonical Transcription
		if err := json.Unmarshal(v, &canonical); err == nil && strings.TrimSpace(canonical.Text) != "" {
			if canonical.Source == "" {
				canonical.Source = "transcription"
			}
			result = &canonical
		}
	}

	for _, key := range legacyTranscriptionKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if result == nil {
			var text string
			if err := json.Unmarshal(v, &text); err == nil && strings.TrimSpace(text) != "" {
				result = &Transcription{Source: key, Text: text}
			}
		}
		delete(raw, key)
	}

	// Catch stragglers like "transcript" or "ai_transcript_v2". Timestamp
	// bookkeeping fields (transcription_timestamp and friends) are not
	// transcription text and stay where they are.
	var strayKeys []string
	for k := range raw {
		lower := strings.ToLower(k)
		if !strings.Contains(lower, "transcript") {
			continue
		}
		if strings.Contains(lower, "timestamp") || strings.HasSuffix(lower, "_at") {
			continue
		}
		strayKeys = append(strayKeys, k)
	}
	sort.Strings(strayKeys)
	for _, key := range strayKeys {
		if result == nil {
			var text string
			if err := json.Unmarshal(raw[key], &text); err == nil && strings.TrimSpace(text) != "" {
				result = &Transcription{Source: key, Text: text}
			}
		}
		delete(raw, key)
	}

	return result
}
