package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestScoreEmptyRecord(t *testing.T) {
	assert.Equal(t, 0, DefaultScorer().Score(Record{}))
}

func TestScoreBasicAndMetadataFields(t *testing.T) {
	rec := Record{
		URL:        "u",
		Title:      "t",
		Uploader:   "a",
		UploadDate: "20240101",
		ViewCount:  intPtr(0),
		LikeCount:  intPtr(5),
	}

	// Four basic fields plus two metadata fields; a zero view count still
	// counts as present.
	assert.Equal(t, 6, DefaultScorer().Score(rec))
}

func TestScoreCommentsDominateMetadata(t *testing.T) {
	scorer := DefaultScorer()

	bare := Record{
		URL: "u", Title: "t", Description: "d", VideoID: "v", Uploader: "a", UploadDate: "20240101",
		ViewCount: intPtr(1), LikeCount: intPtr(1), CommentCount: intPtr(1),
		Duration: intPtr(1), Width: intPtr(1), Height: intPtr(1),
	}
	withComments := Record{
		URL:               "u",
		CommentsExtracted: true,
		TopComments:       []Comment{{CommentID: "c1"}},
	}

	assert.Greater(t, scorer.Score(withComments), scorer.Score(bare)-scorer.Score(Record{URL: "u"}))
	assert.Equal(t, 12, scorer.Score(bare))
	assert.Equal(t, 1+10+1, scorer.Score(withComments))
}

func TestScoreCommentPointsAreCapped(t *testing.T) {
	comments := make([]Comment, 25)
	rec := Record{CommentsExtracted: true, TopComments: comments}

	assert.Equal(t, 10+10, DefaultScorer().Score(rec))
}

func TestScoreTranscriptionAndDownload(t *testing.T) {
	rec := Record{
		Transcription: &Transcription{Source: "whisper_transcription", Text: "hello world"},
		DownloadedAt:  "2024-01-01T00:00:00",
	}
	assert.Equal(t, 5+2, DefaultScorer().Score(rec))

	blank := Record{Transcription: &Transcription{Source: "subtitle", Text: "   "}}
	assert.Equal(t, 0, DefaultScorer().Score(blank))
}

func TestScoreWeightsAreTunable(t *testing.T) {
	scorer := DefaultScorer()
	scorer.Transcription = 50

	rec := Record{Transcription: &Transcription{Source: "transcription", Text: "x"}}
	assert.Equal(t, 50, scorer.Score(rec))
}
