package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/roman628/tiktok-archiver/internal/store"
	"github.com/roman628/tiktok-archiver/internal/whisper"
	"github.com/roman628/tiktok-archiver/internal/ytdlp"
)

type doctorResult struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

type doctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	storePath := fs.String("store", defaultStorePath, "store file path")
	outputDir := fs.String("output-dir", "downloads", "media output directory")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := doctor(*storePath, *outputDir)

	if *jsonOut {
		return printJSON(res)
	}
	for _, c := range res.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}

func doctor(storePath, outputDir string) doctorResult {
	checks := make([]doctorCheck, 0, 5)

	dep := ytdlp.DependencyStatus()
	checks = append(checks, doctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp"),
	})
	checks = append(checks, doctorCheck{
		Name:    "dependency:ffmpeg",
		OK:      dep.FFmpegFound,
		Message: dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})

	// Whisper is optional; report presence without failing the doctor.
	w := &whisper.Client{}
	whisperMsg := "whisper not found on PATH (transcription disabled)"
	if w.Available() {
		whisperMsg = "whisper found"
	}
	checks = append(checks, doctorCheck{Name: "dependency:whisper", OK: true, Message: whisperMsg})

	outOK, outMsg := ensureWritableDir(outputDir)
	checks = append(checks, doctorCheck{Name: "directory:output", OK: outOK, Message: outMsg})

	checks = append(checks, storeCheck(storePath))

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return doctorResult{OK: ok, Checks: checks}
}

func storeCheck(storePath string) doctorCheck {
	check := doctorCheck{Name: "store:parse"}
	if _, err := os.Stat(storePath); os.IsNotExist(err) {
		check.OK = true
		check.Message = fmt.Sprintf("%s does not exist yet (will be created on first collect)", storePath)
		return check
	}
	loaded, err := store.Load(storePath)
	switch {
	case err != nil:
		check.Message = fmt.Sprintf("%s is unreadable: %v", storePath, err)
	case loaded.Repaired:
		check.OK = true
		check.Message = fmt.Sprintf("%s parses after repair (%d records, %d fragments discarded); run repair to persist", storePath, len(loaded.Records), loaded.Discarded)
	default:
		check.OK = true
		check.Message = fmt.Sprintf("%s parses cleanly (%d records)", storePath, len(loaded.Records))
	}
	return check
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := store.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "tiktok-archiver-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
