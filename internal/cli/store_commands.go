package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/roman628/tiktok-archiver/internal/model"
	"github.com/roman628/tiktok-archiver/internal/store"
)

const defaultStorePath = "master_videos.json"

func runRepair(args []string) error {
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	storePath := fs.String("store", defaultStorePath, "store file path")
	output := fs.String("output", "", "write repaired store here instead of in place")
	force := fs.Bool("force", false, "accept an empty result over real data")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	lock, err := store.AcquireLock(*storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	result, err := store.RepairFile(store.RepairFileOptions{
		Path:       *storePath,
		OutputPath: strings.TrimSpace(*output),
		Force:      *force,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(result)
	}
	if result.AlreadyValid {
		fmt.Printf("%s is already valid (%d records), rewrote with stable formatting\n", *storePath, result.Recovered)
		return nil
	}
	fmt.Printf("recovered: %d\n", result.Recovered)
	fmt.Printf("discarded: %d\n", result.Discarded)
	if result.BackupPath != "" {
		fmt.Printf("backup: %s\n", result.BackupPath)
	}
	fmt.Printf("output: %s\n", result.OutputPath)
	return nil
}

func runDedup(args []string) error {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	storePath := fs.String("store", defaultStorePath, "store file path")
	output := fs.String("output", "", "write deduplicated store here instead of in place")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	lock, err := store.AcquireLock(*storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	result, err := store.DeduplicateFile(*storePath, strings.TrimSpace(*output), model.DefaultScorer())
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(result)
	}
	fmt.Printf("input: %d\n", result.Stats.Input)
	fmt.Printf("output: %d\n", result.Stats.Output)
	fmt.Printf("duplicate_groups: %d\n", result.Stats.DuplicateGroups)
	fmt.Printf("removed: %d\n", result.Stats.Removed)
	if result.Stats.Unkeyed > 0 {
		fmt.Printf("unkeyed (kept as-is): %d\n", result.Stats.Unkeyed)
	}
	if result.BackupPath != "" {
		fmt.Printf("backup: %s\n", result.BackupPath)
	}
	return nil
}

func runClean(args []string) error {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	storePath := fs.String("store", defaultStorePath, "store file path")
	output := fs.String("output", "", "write cleaned store here instead of in place")
	dryRun := fs.Bool("dry-run", false, "report what would be removed without writing")
	force := fs.Bool("force", false, "skip the confirmation prompt")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dryRun {
		loaded, err := store.Load(*storePath)
		if err != nil {
			return err
		}
		split := store.SplitByTranscription(loaded.Records)
		if *jsonOut {
			return printJSON(map[string]int{
				"input":        len(loaded.Records),
				"would_keep":   len(split.Kept),
				"would_remove": len(split.Removed),
			})
		}
		fmt.Printf("would keep %d of %d records, remove %d\n", len(split.Kept), len(loaded.Records), len(split.Removed))
		return nil
	}

	if !*force {
		ok, err := promptConfirm(fmt.Sprintf("remove records without transcription from %s? [y/N] ", *storePath))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
	}

	lock, err := store.AcquireLock(*storePath)
	if err != nil {
		return err
	}
	defer lock.Release()

	result, err := store.CleanFile(*storePath, strings.TrimSpace(*output))
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(result)
	}
	fmt.Printf("kept: %d of %d\n", result.Kept, result.Input)
	fmt.Printf("removed: %d\n", result.Removed)
	if result.BackupPath != "" {
		fmt.Printf("backup: %s\n", result.BackupPath)
	}
	return nil
}

func runSanitize(args []string) error {
	fs := flag.NewFlagSet("sanitize", flag.ContinueOnError)
	storePath := fs.String("store", defaultStorePath, "store file path")
	output := fs.String("output", "sanitized_videos.json", "output file for the reduced projection")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := store.SanitizeFile(*storePath, strings.TrimSpace(*output))
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(result)
	}
	fmt.Printf("exported %d of %d records to %s\n", result.Exported, result.Input, result.OutputPath)
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	storePath := fs.String("store", defaultStorePath, "store file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	loaded, err := store.Load(*storePath)
	if err != nil {
		return err
	}
	stats := store.Summarize(loaded.Records)

	if *jsonOut {
		return printJSON(stats)
	}
	fmt.Printf("records: %d\n", stats.Total)
	fmt.Printf("unique_urls: %d\n", stats.UniqueURLs)
	fmt.Printf("duplicate_urls: %d\n", stats.DuplicateURLs)
	if stats.Unkeyed > 0 {
		fmt.Printf("unkeyed: %d\n", stats.Unkeyed)
	}
	fmt.Printf("with_comments: %d (total comments %d)\n", stats.WithComments, stats.TotalComments)
	fmt.Printf("with_transcription: %d\n", stats.WithTranscription)
	fmt.Printf("downloaded: %d\n", stats.Downloaded)
	if loaded.Repaired {
		fmt.Printf("note: store required repair to read (%d fragments discarded); run repair to persist\n", loaded.Discarded)
	}
	return nil
}
