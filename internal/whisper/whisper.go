package whisper

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Client shells out to a whisper CLI to transcribe downloaded media. The
// zero value uses the "whisper" binary on PATH with the small English model.
type Client struct {
	Binary   string
	Model    string
	Language string
}

func (c *Client) binary() string {
	if strings.TrimSpace(c.Binary) != "" {
		return c.Binary
	}
	return "whisper"
}

func (c *Client) model() string {
	if strings.TrimSpace(c.Model) != "" {
		return c.Model
	}
	return "small.en"
}

// Available reports whether the transcription binary can be found.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.binary())
	return err == nil
}

// Transcribe runs the whisper CLI on mediaPath and returns the plain-text
// transcript. Output goes to a temp dir; only stdout text is kept.
func (c *Client) Transcribe(ctx context.Context, mediaPath string) (string, error) {
	if strings.TrimSpace(mediaPath) == "" {
		return "", fmt.Errorf("media path is required")
	}
	abs, err := filepath.Abs(mediaPath)
	if err != nil {
		return "", fmt.Errorf("resolve media path %s: %w", mediaPath, err)
	}

	args := []string{
		abs,
		"--model", c.model(),
		"--output_format", "txt",
		"--output_dir", filepath.Dir(abs),
		"--fp16", "False",
	}
	if strings.TrimSpace(c.Language) != "" {
		args = append(args, "--language", c.Language)
	}

	cmd := exec.CommandContext(ctx, c.binary(), args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper failed for %s: %w: %s", abs, err, strings.TrimSpace(stderr.String()))
	}
	return CleanTranscript(stdout.String()), nil
}

// CleanTranscript strips whisper's timestamp prefixes and joins the
// remaining lines into a single block of text.
func CleanTranscript(raw string) string {
	var parts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Lines look like "[00:00.000 --> 00:04.120]  spoken text".
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end >= 0 {
				line = strings.TrimSpace(line[end+1:])
			}
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
