package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roman628/tiktok-archiver/internal/model"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// Client shells out to yt-dlp for TikTok metadata, comments, and media.
// The zero value uses the yt-dlp binary found on PATH.
type Client struct {
	Binary      string
	CookiesPath string
	ProxyURL    string
	// MSToken is TikTok's msToken cookie value. Metadata works without
	// it, but comment extraction is throttled hard for anonymous
	// sessions, so it is sent as a Cookie header when set.
	MSToken           string
	DownloadLimitMBps float64
}

type DownloadOptions struct {
	VideoURL   string
	OutputDir  string
	Quality    string
	AudioOnly  bool
	Stdout     io.Writer
	Stderr     io.Writer
	LogWriter  io.Writer
	EchoOutput bool
	Progress   func(stream OutputStream, line string)
}

type DownloadResult struct {
	Command []string
}

type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath("yt-dlp"); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

func CheckDependencies() error {
	report := DependencyStatus()
	if !report.YTDLPFound {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	if !report.FFmpegFound {
		return fmt.Errorf("missing dependency: ffmpeg is required for merging and audio extraction and was not found on PATH")
	}
	return nil
}

func (c *Client) binary() string {
	if strings.TrimSpace(c.Binary) != "" {
		return c.Binary
	}
	return "yt-dlp"
}

func (c *Client) commonArgs() ([]string, error) {
	var args []string
	if strings.TrimSpace(c.CookiesPath) != "" {
		cookiesPath, err := resolveCookiesPath(c.CookiesPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--cookies", cookiesPath)
	}
	if strings.TrimSpace(c.ProxyURL) != "" {
		args = append(args, "--proxy", strings.TrimSpace(c.ProxyURL))
	}
	if token := strings.TrimSpace(c.MSToken); token != "" {
		args = append(args, "--add-header", "Cookie: msToken="+token)
	}
	return args, nil
}

// FetchMetadata runs yt-dlp -J for url and maps the info dictionary into a
// Record. Fields this tool does not model (hashtags, fps, repost count and
// so on) land in the record's open schema and round-trip with the store.
func (c *Client) FetchMetadata(ctx context.Context, url string) (model.Record, error) {
	raw, err := c.infoJSON(ctx, url, false)
	if err != nil {
		return model.Record{}, err
	}
	return RecordFromInfoJSON(raw, url, time.Now())
}

// FetchComments runs yt-dlp -J with comment extraction enabled and returns
// at most maxComments top-level comments, each carrying at most maxReplies
// replies.
func (c *Client) FetchComments(ctx context.Context, url string, maxComments, maxReplies int) ([]model.Comment, error) {
	raw, err := c.infoJSON(ctx, url, true)
	if err != nil {
		return nil, err
	}
	return CommentsFromInfoJSON(raw, maxComments, maxReplies)
}

func (c *Client) infoJSON(ctx context.Context, url string, withComments bool) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("video URL is required")
	}
	args := []string{"-J", "--no-playlist"}
	if withComments {
		args = append(args, "--write-comments")
	}
	common, err := c.commonArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, common...)
	args = append(args, url)

	cmd := exec.CommandContext(ctx, c.binary(), args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed for %s: %w: %s", url, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output for %s", url)
	}
	return stdout.Bytes(), nil
}

// DownloadVideo downloads the media file for opts.VideoURL under
// opts.OutputDir, named by uploader and video id so collisions are
// impossible across accounts.
func (c *Client) DownloadVideo(ctx context.Context, opts DownloadOptions) (DownloadResult, error) {
	if strings.TrimSpace(opts.VideoURL) == "" {
		return DownloadResult{}, fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return DownloadResult{}, fmt.Errorf("output directory is required")
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"--restrict-filenames",
		"-P", opts.OutputDir,
		"-o", "%(uploader)s/%(upload_date)s_%(title).200B_[%(id)s].%(ext)s",
	}
	if opts.AudioOnly {
		args = append(args, "-x", "--audio-format", "mp3")
	} else {
		args = append(args, "-f", selectFormat(opts.Quality))
	}
	common, err := c.commonArgs()
	if err != nil {
		return DownloadResult{}, err
	}
	args = append(args, common...)
	if c.DownloadLimitMBps > 0 {
		args = append(args, "--limit-rate", formatRateLimitMBps(c.DownloadLimitMBps))
	}
	args = append(args, opts.VideoURL)

	command := append([]string{c.binary()}, args...)
	if err := c.runCommand(ctx, args, opts); err != nil {
		return DownloadResult{Command: command}, err
	}
	return DownloadResult{Command: command}, nil
}

func selectFormat(rawQuality string) string {
	switch strings.ToLower(strings.TrimSpace(rawQuality)) {
	case "", "best":
		return "bv*+ba/b"
	case "1080p", "1080", "hd":
		return "bv*[height<=1080]+ba/b[height<=1080]"
	case "720p", "720", "sd", "small":
		return "bv*[height<=720]+ba/b[height<=720]"
	default:
		return "bv*+ba/b"
	}
}

// RecordFromInfoJSON maps a yt-dlp info dictionary to a Record. Known
// fields become typed struct fields; everything else this tool cares to
// keep (engagement extras, technical details) goes into the open schema.
func RecordFromInfoJSON(raw []byte, requestedURL string, now time.Time) (model.Record, error) {
	info := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &info); err != nil {
		return model.Record{}, fmt.Errorf("parse yt-dlp info JSON: %w", err)
	}

	rec := model.Record{Extra: map[string]json.RawMessage{}}

	str := func(key string) string {
		var s string
		if v, ok := info[key]; ok {
			_ = json.Unmarshal(v, &s)
		}
		return s
	}
	intPtr := func(key string) *int {
		v, ok := info[key]
		if !ok || string(v) == "null" {
			return nil
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return nil
		}
		n := int(f)
		return &n
	}

	rec.URL = str("webpage_url")
	if rec.URL == "" {
		rec.URL = requestedURL
	}
	rec.Title = str("title")
	rec.Description = str("description")
	rec.VideoID = str("id")
	rec.Uploader = str("uploader")
	rec.UploadDate = str("upload_date")

	rec.ViewCount = intPtr("view_count")
	rec.LikeCount = intPtr("like_count")
	rec.CommentCount = intPtr("comment_count")
	rec.Duration = intPtr("duration")
	rec.Width = intPtr("width")
	rec.Height = intPtr("height")

	rec.DownloadedAt = now.Format(time.RFC3339)

	// tags is yt-dlp's name; the store has always called them hashtags.
	if v, ok := info["tags"]; ok && string(v) != "null" {
		rec.Extra["hashtags"] = v
	}
	for _, key := range []string{
		"uploader_id", "uploader_url", "repost_count",
		"timestamp", "fps", "filesize", "format",
	} {
		if v, ok := info[key]; ok && string(v) != "null" {
			rec.Extra[key] = v
		}
	}
	return rec, nil
}

// CommentsFromInfoJSON rebuilds comment threads from yt-dlp's flat comment
// list. yt-dlp emits replies as siblings pointing at their parent id;
// top-level comments have parent "root".
func CommentsFromInfoJSON(raw []byte, maxComments, maxReplies int) ([]model.Comment, error) {
	var info struct {
		Comments []ytdlpComment `json:"comments"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp info JSON: %w", err)
	}

	var top []model.Comment
	index := map[string]int{}
	for _, c := range info.Comments {
		if c.Parent == "" || c.Parent == "root" {
			if maxComments > 0 && len(top) >= maxComments {
				continue
			}
			index[c.ID] = len(top)
			top = append(top, c.toModel())
		}
	}
	for _, c := range info.Comments {
		if c.Parent == "" || c.Parent == "root" {
			continue
		}
		i, ok := index[c.Parent]
		if !ok {
			continue
		}
		if maxReplies > 0 && len(top[i].Replies) >= maxReplies {
			continue
		}
		top[i].Replies = append(top[i].Replies, c.toModel())
		top[i].ReplyCount = len(top[i].Replies)
	}
	return top, nil
}

type ytdlpComment struct {
	ID        string  `json:"id"`
	Parent    string  `json:"parent"`
	Text      string  `json:"text"`
	Author    string  `json:"author"`
	AuthorID  string  `json:"author_id"`
	LikeCount int     `json:"like_count"`
	Timestamp float64 `json:"timestamp"`
}

func (c ytdlpComment) toModel() model.Comment {
	username := c.Author
	if username == "" {
		username = c.AuthorID
	}
	display := c.Author
	if display == "" {
		display = username
	}
	return model.Comment{
		CommentID:   c.ID,
		Username:    username,
		DisplayName: display,
		CommentText: c.Text,
		LikeCount:   c.LikeCount,
		Timestamp:   int64(c.Timestamp),
	}
}

func (c *Client) runCommand(ctx context.Context, args []string, opts DownloadOptions) error {
	cmd := exec.CommandContext(ctx, c.binary(), args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader, echoW io.Writer) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if opts.LogWriter != nil {
				_, _ = io.WriteString(opts.LogWriter, line+"\n")
			}
			mu.Unlock()

			if opts.EchoOutput && echoW != nil {
				_, _ = io.WriteString(echoW, line+"\n")
			}
			if opts.Progress != nil {
				opts.Progress(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe, opts.Stdout)
	go read(StreamStderr, stderrPipe, opts.Stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("yt-dlp failed: %w\n%s\n%s", err, strings.TrimSpace(errBuf.String()), strings.TrimSpace(outBuf.String()))
	}
	return nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}

func formatRateLimitMBps(v float64) string {
	return fmt.Sprintf("%gM", v)
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
