package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "collect":
		return runCollect(args[1:])
	case "update-comments":
		return runUpdateComments(args[1:])
	case "repair":
		return runRepair(args[1:])
	case "dedup":
		return runDedup(args[1:])
	case "clean":
		return runClean(args[1:])
	case "sanitize":
		return runSanitize(args[1:])
	case "stats":
		return runStats(args[1:])
	case "dedupe-urls":
		return runDedupeURLs(args[1:])
	case "browse":
		return runBrowse(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("tiktok-archiver: crash-safe TikTok metadata collection store")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  tiktok-archiver doctor")
	fmt.Println("  tiktok-archiver collect --urls urls.txt")
	fmt.Println("  tiktok-archiver stats")
	fmt.Println()
	fmt.Println("Collection Commands:")
	fmt.Println("  collect          fetch metadata for new URLs and append to the store")
	fmt.Println("  update-comments  backfill comments for records that lack them")
	fmt.Println()
	fmt.Println("Store Commands:")
	fmt.Println("  repair       recover records from a corrupted store file")
	fmt.Println("  dedup        keep the most complete record per URL")
	fmt.Println("  clean        drop records without a transcription")
	fmt.Println("  sanitize     export a reduced field set for analysis")
	fmt.Println("  stats        print store coverage summary")
	fmt.Println("  browse       interactive store browser")
	fmt.Println()
	fmt.Println("Utility Commands:")
	fmt.Println("  dedupe-urls  merge URL list files into one sorted unique list")
	fmt.Println("  doctor       run dependency and filesystem preflight checks")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Destructive rewrites always create a timestamped backup first")
}
