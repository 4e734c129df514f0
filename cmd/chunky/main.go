package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
	files      []string
	topics     []string
	topK       int
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "chunky",
		Short: "Ask questions about Wikipedia articles, files and web pages",
		Long: `chunky loads text from Wikipedia, local files or URLs, splits it into
paragraph chunks, embeds and indexes them, and answers questions with a chat
model using the closest chunks as context.

Without a subcommand it opens the interactive session.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env early so API keys are visible to every command
			_ = godotenv.Load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path (default ./config.yaml, then ~/.config/chunky/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringArrayVarP(&opts.files, "file", "f", nil, "file, glob or URL to ingest (repeatable, replaces configured sources)")
	rootCmd.PersistentFlags().StringArrayVarP(&opts.topics, "topic", "t", nil, "Wikipedia topic to ingest (repeatable, replaces configured sources)")
	rootCmd.PersistentFlags().IntVarP(&opts.topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")

	rootCmd.AddCommand(askCmd(opts))
	rootCmd.AddCommand(searchCmd(opts))
	rootCmd.AddCommand(indexCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))

	// If no command is specified, default to the interactive session
	var noAnswer bool
	rootCmd.Flags().BoolVar(&noAnswer, "no-answer", false, "show matching chunks only")
	rootCmd.RunE = runAsk(opts, &noAnswer)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
