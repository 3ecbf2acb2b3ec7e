package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"fbscraper/pkg/auth"
	"fbscraper/pkg/config"
	"fbscraper/pkg/errors"
	"fbscraper/pkg/logger"
	"fbscraper/pkg/scraper"
	"fbscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	quiet       bool
	verbose     bool
	cookieFile  string
	accountName string
	outputDir   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fbscraper",
	Short: "Dump and parse Facebook Messenger conversations",
	Long: `fbscraper dumps the full history of your Messenger conversations as JSON
and parses the dumps into reports of messages, pictures, gifs, videos, files
and links. Attachments can be downloaded alongside the reports.

Requests are authenticated with the request data of a logged-in browser
session. Run 'fbscraper auth login' to store it, or pass a file with --cookie.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 when the run stopped on a failed download and 1 otherwise
func exitCode(err error) int {
	var e *errors.Error
	if stderrors.As(err, &e) && !errors.IsFatal(e.Type) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.fbscraper.yaml or ~/.config/fbscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "list every saved file")
	rootCmd.PersistentFlags().StringVar(&cookieFile, "cookie", "", "file holding the request data of a browser session")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory (default \"output\")")

	rootCmd.SetVersionTemplate(`fbscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// changedFlags collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects them
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()

	strs := map[string]string{"cookie": cookieFile, "account": accountName, "output": outputDir, "log-level": logLevel}
	for name, v := range strs {
		if fs.Changed(name) {
			flags[name] = v
		}
	}
	if fs.Changed("quiet") {
		flags["quiet"] = quiet
	}
	for _, name := range []string{"size", "offset", "threads"} {
		if fs.Lookup(name) != nil && fs.Changed(name) {
			v, _ := fs.GetInt(name)
			flags[name] = v
		}
	}
	if fs.Lookup("timer") != nil && fs.Changed("timer") {
		v, _ := fs.GetFloat64("timer")
		flags["timer"] = v
	}
	if fs.Lookup("fail-fast") != nil && fs.Changed("fail-fast") {
		v, _ := fs.GetBool("fail-fast")
		flags["fail-fast"] = v
	}
	return flags
}

// loadConfig loads the configuration and initializes the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, changedFlags(cmd))
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.UI.Quiet {
		ui.SetQuietMode(true)
	}
	logger.GetLogger().WithField("version", version).Info("fbscraper starting")
	return cfg, nil
}

// loadRequestData reads the session from --cookie, a named account or the
// default account, in that order
func loadRequestData(cfg *config.Config) (*auth.RequestData, error) {
	if path := cfg.Messenger.RequestDataFile; path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read request data: %w", err)
		}
		return auth.ParseRequestData(string(raw))
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if cfg.Messenger.Account != "" {
		account, err = manager.Retrieve(cfg.Messenger.Account)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		ui.PrintWarning("No request data found. Store a session with 'fbscraper auth login' or pass --cookie <file>")
		return nil, err
	}

	logger.GetLogger().WithField("account", account.Name).Info("Using stored credentials")
	return account.Parse()
}

// newScraper builds a scraper and a context cancelled on SIGINT or SIGTERM.
// The signal also raises the scraper's abort flag so transfers stop between
// chunks.
func newScraper(cmd *cobra.Command) (*scraper.Scraper, context.Context, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	creds, err := loadRequestData(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := scraper.New(cfg, creds)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	stopAbort := context.AfterFunc(ctx, s.Abort().Trigger)
	cleanup := func() {
		stopAbort()
		stop()
	}
	return s, ctx, cleanup, nil
}
