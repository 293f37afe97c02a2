package ytdlp

import (
	"testing"
	"time"
)

func TestFormatRateLimitMBps(t *testing.T) {
	if got := formatRateLimitMBps(10); got != "10M" {
		t.Fatalf("unexpected rate format: got %q want %q", got, "10M")
	}
	if got := formatRateLimitMBps(2.5); got != "2.5M" {
		t.Fatalf("unexpected rate format: got %q want %q", got, "2.5M")
	}
}

func TestCommonArgsSendMSTokenCookie(t *testing.T) {
	c := &Client{MSToken: "abc123"}
	args, err := c.commonArgs()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for i, arg := range args {
		if arg == "--add-header" && i+1 < len(args) && args[i+1] == "Cookie: msToken=abc123" {
			found = true
		}
	}
	if !found {
		t.Fatalf("msToken cookie header missing from args: %v", args)
	}

	args, err = (&Client{}).commonArgs()
	if err != nil {
		t.Fatal(err)
	}
	for _, arg := range args {
		if arg == "--add-header" {
			t.Fatalf("no cookie header expected without a token: %v", args)
		}
	}
}

func TestSelectFormat(t *testing.T) {
	if got := selectFormat(""); got != "bv*+ba/b" {
		t.Fatalf("unexpected default format: %q", got)
	}
	if got := selectFormat("720p"); got != "bv*[height<=720]+ba/b[height<=720]" {
		t.Fatalf("unexpected 720p format: %q", got)
	}
}

func TestRecordFromInfoJSON(t *testing.T) {
	raw := []byte(`{
		"id": "7300000000000000001",
		"title": "dance video",
		"description": "a description #fyp",
		"webpage_url": "https://www.tiktok.com/@creator/video/7300000000000000001",
		"uploader": "creator",
		"uploader_id": "MS4wLjABAAAA",
		"upload_date": "20240115",
		"view_count": 120000,
		"like_count": 0,
		"comment_count": null,
		"duration": 31.5,
		"width": 576,
		"height": 1024,
		"fps": 30,
		"repost_count": 17,
		"tags": ["fyp", "dance"]
	}`)

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec, err := RecordFromInfoJSON(raw, "https://requested", now)
	if err != nil {
		t.Fatalf("map info json: %v", err)
	}

	if rec.URL != "https://www.tiktok.com/@creator/video/7300000000000000001" {
		t.Fatalf("unexpected url: %q", rec.URL)
	}
	if rec.VideoID != "7300000000000000001" || rec.Uploader != "creator" || rec.UploadDate != "20240115" {
		t.Fatalf("unexpected basic fields: %+v", rec)
	}
	if rec.ViewCount == nil || *rec.ViewCount != 120000 {
		t.Fatalf("unexpected view count: %v", rec.ViewCount)
	}
	// 0 is a real value, null is absence.
	if rec.LikeCount == nil || *rec.LikeCount != 0 {
		t.Fatalf("like_count 0 should be present: %v", rec.LikeCount)
	}
	if rec.CommentCount != nil {
		t.Fatalf("null comment_count should be absent: %v", *rec.CommentCount)
	}
	if rec.Duration == nil || *rec.Duration != 31 {
		t.Fatalf("unexpected duration: %v", rec.Duration)
	}
	if rec.DownloadedAt != "2026-08-30T12:00:00Z" {
		t.Fatalf("unexpected downloaded_at: %q", rec.DownloadedAt)
	}
	if string(rec.Extra["hashtags"]) != `["fyp", "dance"]` {
		t.Fatalf("tags not mapped to hashtags: %q", rec.Extra["hashtags"])
	}
	if string(rec.Extra["repost_count"]) != "17" || string(rec.Extra["fps"]) != "30" {
		t.Fatalf("technical extras missing: %v", rec.Extra)
	}
}

func TestRecordFromInfoJSONFallsBackToRequestedURL(t *testing.T) {
	rec, err := RecordFromInfoJSON([]byte(`{"id":"1"}`), "https://www.tiktok.com/@a/video/1", time.Now())
	if err != nil {
		t.Fatalf("map info json: %v", err)
	}
	if rec.URL != "https://www.tiktok.com/@a/video/1" {
		t.Fatalf("unexpected url fallback: %q", rec.URL)
	}
}

func TestCommentsFromInfoJSONThreadsAndCaps(t *testing.T) {
	raw := []byte(`{"comments": [
		{"id": "c1", "parent": "root", "text": "first", "author": "alice", "like_count": 5, "timestamp": 1700000000},
		{"id": "c2", "parent": "root", "text": "second", "author": "bob"},
		{"id": "r1", "parent": "c1", "text": "reply one", "author": "carol"},
		{"id": "r2", "parent": "c1", "text": "reply two", "author": "dave"},
		{"id": "r3", "parent": "c1", "text": "reply three", "author": "erin"},
		{"id": "c3", "parent": "root", "text": "third", "author": "frank"},
		{"id": "orphan", "parent": "c9", "text": "dangling reply", "author": "gus"}
	]}`)

	comments, err := CommentsFromInfoJSON(raw, 2, 2)
	if err != nil {
		t.Fatalf("map comments: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 top-level comments, got %d", len(comments))
	}
	if comments[0].CommentID != "c1" || comments[0].Username != "alice" || comments[0].Timestamp != 1700000000 {
		t.Fatalf("unexpected first comment: %+v", comments[0])
	}
	if len(comments[0].Replies) != 2 || comments[0].ReplyCount != 2 {
		t.Fatalf("reply cap not enforced: %+v", comments[0])
	}
	if comments[0].Replies[0].CommentText != "reply one" {
		t.Fatalf("unexpected reply order: %+v", comments[0].Replies)
	}
	if len(comments[1].Replies) != 0 {
		t.Fatalf("unexpected replies on second comment: %+v", comments[1])
	}
}

func TestCommentsFromInfoJSONEmpty(t *testing.T) {
	comments, err := CommentsFromInfoJSON([]byte(`{"id":"1"}`), 10, 5)
	if err != nil {
		t.Fatalf("map comments: %v", err)
	}
	if len(comments) != 0 {
		t.Fatalf("expected no comments, got %d", len(comments))
	}
}
