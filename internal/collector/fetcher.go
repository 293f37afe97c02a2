package collector

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/roman628/tiktok-archiver/internal/model"
	"github.com/roman628/tiktok-archiver/internal/ytdlp"
)

// FetchResult is what a video fetch produces. Err carries the failure when
// Success is false; MediaPath is set only when media was downloaded.
type FetchResult struct {
	Success   bool
	Record    model.Record
	MediaPath string
	Err       error
}

// VideoFetcher produces a record for a video URL. Implementations must
// treat every failure as per-item: return it in the result, never panic.
type VideoFetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// CommentFetcher returns top-level comments for a video URL.
type CommentFetcher interface {
	FetchComments(ctx context.Context, url string, maxComments, maxReplies int) ([]model.Comment, error)
}

// Transcriber turns a downloaded media file into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (string, error)
}

// YTDLPFetcher is the production VideoFetcher: metadata via yt-dlp -J,
// optionally followed by a media download into OutputDir.
type YTDLPFetcher struct {
	Client        *ytdlp.Client
	DownloadMedia bool
	OutputDir     string
	Quality       string
	AudioOnly     bool
}

func (f *YTDLPFetcher) Fetch(ctx context.Context, url string) FetchResult {
	rec, err := f.Client.FetchMetadata(ctx, url)
	if err != nil {
		return FetchResult{Err: fmt.Errorf("fetch metadata: %w", err)}
	}

	result := FetchResult{Success: true, Record: rec}
	if !f.DownloadMedia {
		return result
	}

	_, err = f.Client.DownloadVideo(ctx, ytdlp.DownloadOptions{
		VideoURL:  url,
		OutputDir: f.OutputDir,
		Quality:   f.Quality,
		AudioOnly: f.AudioOnly,
	})
	if err != nil {
		return FetchResult{Err: fmt.Errorf("download media: %w", err)}
	}
	if path, ok := findMediaFile(f.OutputDir, rec.VideoID); ok {
		result.MediaPath = path
	}
	return result
}

// findMediaFile locates the downloaded file by the video id embedded in the
// output filename template.
func findMediaFile(outputDir, videoID string) (string, bool) {
	if videoID == "" {
		return "", false
	}
	// Brackets in the filename template are glob metacharacters and need
	// escaping here.
	matches, err := filepath.Glob(filepath.Join(outputDir, "*", fmt.Sprintf(`*\[%s\].*`, videoID)))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// YTDLPCommentFetcher adapts the yt-dlp client to the CommentFetcher
// interface.
type YTDLPCommentFetcher struct {
	Client *ytdlp.Client
}

func (f *YTDLPCommentFetcher) FetchComments(ctx context.Context, url string, maxComments, maxReplies int) ([]model.Comment, error) {
	return f.Client.FetchComments(ctx, url, maxComments, maxReplies)
}
