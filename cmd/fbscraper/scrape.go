package main

import (
	stderrors "errors"
	"strconv"

	"github.com/spf13/cobra"

	"fbscraper/pkg/classifier"
	"fbscraper/pkg/errors"
	"fbscraper/pkg/scraper"
	"fbscraper/pkg/ui"
)

var (
	// Dump command flags
	dumpIDs      []string
	dumpSize     int
	dumpOffset   int
	dumpTimer    float64
	dumpMetadata bool

	// Parse command flags
	parseMode     string
	parseData     []string
	parseInputs   []string
	parseIDs      []string
	parseThreads  int
	parseFailFast bool
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump conversations as JSON",
	Long: `Dump the full history of conversations as JSON.

Each conversation is written to '<output>/<id> - <name>/complete.json' and,
depending on output.dump_format, 'complete.pretty.json'. Without --convers-id
every conversation of the account, active or archived, is dumped.`,
	Example: `  # Dump every conversation
  fbscraper dump --cookie request_data.txt

  # Dump two conversations, 500 messages per request, one request every 2s
  fbscraper dump --convers-id 100001 --convers-id 200002 --size 500 --timer 2

  # Print the conversation directory without dumping anything
  fbscraper dump --metadata`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse conversations into reports and download attachments",
	Long: `Parse conversations into one text report per data type: messages, pictures,
gifs, videos, files and links.

Conversations come from dump files given with --infile or, without it, are
retrieved live. In 'dl' mode pictures, gifs, videos and files are also
downloaded next to the reports.`,
	Example: `  # Report on every data type of a dump
  fbscraper parse --infile "output/100001 - Ada/complete.json"

  # Download pictures and videos of a live conversation with 8 workers
  fbscraper parse --mode dl --data pictures --data videos --convers-id 100001 --threads 8`,
	Args: cobra.NoArgs,
	RunE: runParse,
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the conversations of the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printMetadata(cmd)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(listCmd)

	dumpCmd.Flags().StringSliceVar(&dumpIDs, "convers-id", nil, "conversation id to dump (repeatable, default all)")
	dumpCmd.Flags().IntVar(&dumpSize, "size", 2000, "number of messages requested per chunk")
	dumpCmd.Flags().IntVar(&dumpOffset, "offset", 0, "number of most recent messages to skip")
	dumpCmd.Flags().Float64Var(&dumpTimer, "timer", 1, "seconds to wait between requests")
	dumpCmd.Flags().BoolVar(&dumpMetadata, "metadata", false, "print conversations metadata instead of dumping")

	parseCmd.Flags().StringVar(&parseMode, "mode", string(classifier.ModeReport), "report or dl")
	parseCmd.Flags().StringSliceVar(&parseData, "data", []string{"all"}, "data types to retrieve: all, messages, pictures, gifs, videos, files, links")
	parseCmd.Flags().StringSliceVar(&parseInputs, "infile", nil, "dump file to parse (repeatable)")
	parseCmd.Flags().StringSliceVar(&parseIDs, "convers-id", nil, "conversation id to parse live when no --infile is given")
	parseCmd.Flags().IntVar(&parseThreads, "threads", 4, "number of download workers")
	parseCmd.Flags().BoolVar(&parseFailFast, "fail-fast", false, "stop all downloads on the first failure")
}

func printMetadata(cmd *cobra.Command) error {
	s, ctx, cleanup, err := newScraper(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := s.ListConversations(ctx)
	if err != nil {
		return err
	}
	ui.PrintLine(text)
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	if dumpMetadata {
		return printMetadata(cmd)
	}

	s, ctx, cleanup, err := newScraper(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	paths, err := s.Dump(ctx, dumpIDs)
	if err != nil {
		var fbErr *errors.Error
		if stderrors.As(err, &fbErr) && fbErr.Type == errors.ErrorTypeProtocol {
			ui.PrintDetail("Error Occured, Facebook error summary : '%s'", fbErr.Message)
		}
		return err
	}

	ui.PrintSuccess("Dump complete")
	ui.PrintInfo("Files written", strconv.Itoa(len(paths)))
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	mode, err := classifier.ParseMode(parseMode)
	if err != nil {
		return err
	}
	categories, err := classifier.ParseCategories(parseData)
	if err != nil {
		return err
	}

	s, ctx, cleanup, err := newScraper(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := s.Parse(ctx, scraper.ParseOptions{
		Inputs:     parseInputs,
		IDs:        parseIDs,
		Categories: categories,
		Mode:       mode,
		FailFast:   parseFailFast,
		Verbose:    verbose,
	})

	total := make(classifier.Counts)
	for _, r := range results {
		total.Add(r.Counts)
	}
	if len(results) > 1 {
		ui.PrintStep("Parsed %d conversations, %d entries", len(results), total.Total())
	}
	if mode == classifier.ModeDownload {
		ui.PrintInfo("Downloads", s.Tracker().Summary())
	}
	if err != nil {
		if s.Abort().Triggered() {
			ui.PrintWarning("Interrupted, partial files were discarded")
		}
		return err
	}

	ui.PrintSuccess("Parse complete")
	return nil
}
