package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// Record is one collected video entry in the master store. The store schema
// is open: fields this package does not model are preserved verbatim in
// Extra and round-trip unchanged through load/save cycles.
//
// Count-like fields are pointers because the scorer distinguishes "absent or
// null" from a real zero.
type Record struct {
	URL         string
	Title       string
	Description string
	VideoID     string
	Uploader    string
	UploadDate  string

	ViewCount    *int
	LikeCount    *int
	CommentCount *int
	Duration     *int
	Width        *int
	Height       *int

	CommentsExtracted   bool
	TopComments         []Comment
	CommentsExtractedAt string

	Transcription *Transcription

	DownloadedAt string

	Extra map[string]json.RawMessage
}

// Comment is a single top-level comment on a video. Replies are bounded by
// the fetcher (at most a handful per comment) and have no lifecycle of their
// own outside the parent record.
type Comment struct {
	CommentID   string    `json:"comment_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	CommentText string    `json:"comment_text"`
	LikeCount   int       `json:"like_count"`
	Timestamp   int64     `json:"timestamp"`
	ReplyCount  int       `json:"reply_count,omitempty"`
	Replies     []Comment `json:"replies,omitempty"`
}

const (
	keyURL                 = "url"
	keyTitle               = "title"
	keyDescription         = "description"
	keyVideoID             = "video_id"
	keyUploader            = "uploader"
	keyUploadDate          = "upload_date"
	keyViewCount           = "view_count"
	keyLikeCount           = "like_count"
	keyCommentCount        = "comment_count"
	keyDuration            = "duration"
	keyWidth               = "width"
	keyHeight              = "height"
	keyCommentsExtracted   = "comments_extracted"
	keyTopComments         = "top_comments"
	keyCommentsExtractedAt = "comments_extracted_at"
	keyTranscription       = "transcription"
	keyDownloadedAt        = "downloaded_at"
)

func (r *Record) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Record{Extra: map[string]json.RawMessage{}}
	takeString := func(key string, dst *string) {
		v, ok := raw[key]
		if !ok {
			return
		}
		if err := json.Unmarshal(v, dst); err == nil {
			delete(raw, key)
		}
	}
	takeInt := func(key string, dst **int) {
		v, ok := raw[key]
		if !ok {
			return
		}
		if string(v) == "null" {
			delete(raw, key)
			return
		}
		var n int
		if err := json.Unmarshal(v, &n); err == nil {
			*dst = &n
			delete(raw, key)
			return
		}
		// Some legacy entries carry durations as floats.
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			n = int(f)
			*dst = &n
			delete(raw, key)
		}
	}

	takeString(keyURL, &out.URL)
	takeString(keyTitle, &out.Title)
	takeString(keyDescription, &out.Description)
	takeString(keyVideoID, &out.VideoID)
	takeString(keyUploader, &out.Uploader)
	takeString(keyUploadDate, &out.UploadDate)
	takeString(keyCommentsExtractedAt, &out.CommentsExtractedAt)
	takeString(keyDownloadedAt, &out.DownloadedAt)

	takeInt(keyViewCount, &out.ViewCount)
	takeInt(keyLikeCount, &out.LikeCount)
	takeInt(keyCommentCount, &out.CommentCount)
	takeInt(keyDuration, &out.Duration)
	takeInt(keyWidth, &out.Width)
	takeInt(keyHeight, &out.Height)

	if v, ok := raw[keyCommentsExtracted]; ok {
		if err := json.Unmarshal(v, &out.CommentsExtracted); err == nil {
			delete(raw, keyCommentsExtracted)
		}
	}
	if v, ok := raw[keyTopComments]; ok {
		var comments []Comment
		if err := json.Unmarshal(v, &comments); err == nil {
			out.TopComments = comments
			delete(raw, keyTopComments)
		}
	}

	out.Transcription = foldTranscription(raw)

	for k, v := range raw {
		out.Extra[k] = v
	}
	*r = out
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+16)
	for k, v := range r.Extra {
		out[k] = v
	}

	putString := func(key, value string) error {
		if value == "" {
			return nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}
	putInt := func(key string, value *int) error {
		if value == nil {
			return nil
		}
		data, err := json.Marshal(*value)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}

	if err := putString(keyURL, r.URL); err != nil {
		return nil, err
	}
	if err := putString(keyTitle, r.Title); err != nil {
		return nil, err
	}
	if err := putString(keyDescription, r.Description); err != nil {
		return nil, err
	}
	if err := putString(keyVideoID, r.VideoID); err != nil {
		return nil, err
	}
	if err := putString(keyUploader, r.Uploader); err != nil {
		return nil, err
	}
	if err := putString(keyUploadDate, r.UploadDate); err != nil {
		return nil, err
	}
	if err := putString(keyCommentsExtractedAt, r.CommentsExtractedAt); err != nil {
		return nil, err
	}
	if err := putString(keyDownloadedAt, r.DownloadedAt); err != nil {
		return nil, err
	}
	if err := putInt(keyViewCount, r.ViewCount); err != nil {
		return nil, err
	}
	if err := putInt(keyLikeCount, r.LikeCount); err != nil {
		return nil, err
	}
	if err := putInt(keyCommentCount, r.CommentCount); err != nil {
		return nil, err
	}
	if err := putInt(keyDuration, r.Duration); err != nil {
		return nil, err
	}
	if err := putInt(keyWidth, r.Width); err != nil {
		return nil, err
	}
	if err := putInt(keyHeight, r.Height); err != nil {
		return nil, err
	}

	if r.CommentsExtracted || r.TopComments != nil {
		flag, err := json.Marshal(r.CommentsExtracted)
		if err != nil {
			return nil, err
		}
		out[keyCommentsExtracted] = flag
		comments := r.TopComments
		if comments == nil {
			comments = []Comment{}
		}
		data, err := json.Marshal(comments)
		if err != nil {
			return nil, err
		}
		out[keyTopComments] = data
	}

	if r.Transcription != nil && strings.TrimSpace(r.Transcription.Text) != "" {
		data, err := json.Marshal(r.Transcription)
		if err != nil {
			return nil, err
		}
		out[keyTranscription] = data
	}

	return json.Marshal(out)
}

// HasURL reports whether the record carries a natural key. Records without
// one are never merged or deduplicated.
func (r Record) HasURL() bool {
	return strings.TrimSpace(r.URL) != ""
}

// TranscriptionText returns the canonical transcription text, or "" when the
// record has none.
func (r Record) TranscriptionText() string {
	if r.Transcription == nil {
		return ""
	}
	return r.Transcription.Text
}

// HasTranscription reports whether the record carries non-blank
// transcription text.
func (r Record) HasTranscription() bool {
	return strings.TrimSpace(r.TranscriptionText()) != ""
}

// ExtraKeys returns the unmodeled field names in sorted order.
func (r Record) ExtraKeys() []string {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
