package model

// Scorer ranks how much useful data a record carries. Deduplication keeps
// the highest-scoring entry of a duplicate group, so the weights directly
// decide which copy of a video survives a cleanup pass.
type Scorer interface {
	Score(r Record) int
}

// WeightedScorer is the standard completeness heuristic. The weights are
// deliberate: extracted comments outrank every basic field combined, so a
// comment-bearing copy always beats a bare metadata copy.
type WeightedScorer struct {
	BasicField        int
	MetadataField     int
	CommentsExtracted int
	PerComment        int
	CommentCap        int
	Transcription     int
	Downloaded        int
}

// DefaultScorer returns the scorer used by every cleanup command.
func DefaultScorer() WeightedScorer {
	return WeightedScorer{
		BasicField:        1,
		MetadataField:     1,
		CommentsExtracted: 10,
		PerComment:        1,
		CommentCap:        10,
		Transcription:     5,
		Downloaded:        2,
	}
}

func (s WeightedScorer) Score(r Record) int {
	score := 0

	for _, field := range []string{r.Title, r.Description, r.URL, r.VideoID, r.Uploader, r.UploadDate} {
		if field != "" {
			score += s.BasicField
		}
	}

	// A stored zero still counts: only absent/null metadata scores nothing.
	for _, field := range []*int{r.ViewCount, r.LikeCount, r.CommentCount, r.Duration, r.Width, r.Height} {
		if field != nil {
			score += s.MetadataField
		}
	}

	if r.CommentsExtracted {
		score += s.CommentsExtracted
		n := len(r.TopComments)
		if n > s.CommentCap {
			n = s.CommentCap
		}
		score += n * s.PerComment
	}

	if r.HasTranscription() {
		score += s.Transcription
	}

	if r.DownloadedAt != "" {
		score += s.Downloaded
	}

	return score
}
