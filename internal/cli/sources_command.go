package cli

import (
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/roman628/tiktok-archiver/internal/source"
)

func runDedupeURLs(args []string) error {
	fs := flag.NewFlagSet("dedupe-urls", flag.ContinueOnError)
	output := fs.String("output", "deduplicated_urls.txt", "output file for the merged list")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	paths := fs.Args()
	if len(paths) == 0 {
		fs.Usage()
		return errors.New("at least one URL list file is required")
	}

	result, err := source.MergeLists(paths)
	if err != nil {
		return err
	}
	if err := source.WriteList(strings.TrimSpace(*output), source.List{Pending: result.Unique}); err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(map[string]any{
			"per_file":   result.PerFile,
			"unique":     len(result.Unique),
			"duplicates": result.Duplicates,
			"output":     *output,
		})
	}
	files := make([]string, 0, len(result.PerFile))
	for path := range result.PerFile {
		files = append(files, path)
	}
	sort.Strings(files)
	for _, path := range files {
		fmt.Printf("%s: %d urls\n", path, result.PerFile[path])
	}
	fmt.Printf("unique: %d (%d duplicates dropped)\n", len(result.Unique), result.Duplicates)
	fmt.Printf("output: %s\n", *output)
	return nil
}
