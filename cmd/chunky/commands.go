package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"chunky/internal/answer"
	"chunky/internal/domain"
	"chunky/internal/service"
	"chunky/internal/tui"
)

func askCmd(opts *globalOptions) *cobra.Command {
	var noAnswer bool

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ingest the configured sources and open the interactive session",
		Args:  cobra.NoArgs,
		RunE:  runAsk(opts, &noAnswer),
	}
	cmd.Flags().BoolVar(&noAnswer, "no-answer", false, "show matching chunks only")
	return cmd
}

// runAsk builds the interactive session run function. It is shared by ask and
// the root command, each of which binds its own --no-answer flag.
func runAsk(opts *globalOptions, noAnswer *bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(opts, !*noAnswer)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprintln(cmd.ErrOrStderr(), "Loading and indexing sources...")
		report, err := a.ingest(cmd.Context())
		if err != nil {
			return err
		}

		m := tui.New(cmd.Context(), a.svc, reportLine(report), tui.Options{
			TopK:     a.cfg.Ranking.TopK,
			NoAnswer: *noAnswer,
		})
		if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
			return err
		}
		return nil
	}
}

func searchCmd(opts *globalOptions) *cobra.Command {
	var noAnswer bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the top matches for a query and, unless --no-answer, the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			a, err := newApp(opts, !noAnswer)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.ingest(cmd.Context()); err != nil {
				return err
			}
			results, err := a.svc.Search(cmd.Context(), query, a.cfg.Ranking.TopK)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printMatches(out, results)
			if noAnswer {
				return nil
			}

			text, err := a.svc.Respond(cmd.Context(), query, results)
			if errors.Is(err, answer.ErrDisabled) {
				fmt.Fprintln(out, "Answering is disabled (answerer.type: none).")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nAnswer:\n%s\n", text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noAnswer, "no-answer", false, "print matching chunks only")
	return cmd
}

func indexCmd(opts *globalOptions) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Ingest the configured sources and cache their embeddings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.ingest(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reportLine(report))
			if report.Summary != "" {
				fmt.Fprintf(out, "\nSummary:\n%s\n", report.Summary)
			}
			if prune && a.store != nil {
				n, err := a.store.PruneCorpora(cmd.Context(), report.Fingerprint)
				if err != nil {
					return fmt.Errorf("prune: %w", err)
				}
				fmt.Fprintf(out, "Pruned %d stale corpora.\n", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", false, "delete cached embeddings of other corpora")
	return cmd
}

func historyCmd(opts *globalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded questions and answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("history requires storage.enabled")
			}
			defer st.Close()

			items, err := st.ListInteractions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No history yet.")
				return nil
			}
			for _, it := range items {
				fmt.Fprintf(out, "%s  %s (%d matches)\n", it.CreatedAt.Local().Format("2006-01-02 15:04"), it.Question, it.Matches)
				fmt.Fprintf(out, "  %s\n\n", strings.ReplaceAll(it.Answer, "\n", "\n  "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show (0 for all)")
	return cmd
}

func printMatches(w io.Writer, results []domain.SearchResult) {
	fmt.Fprintln(w, "Top Matches:")
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s (Score: %.2f)\n\n", i+1, strings.TrimSpace(r.Chunk.Text), r.Score)
	}
}

func reportLine(r service.IngestReport) string {
	line := fmt.Sprintf("Indexed %d chunks from %d documents", r.Chunks, r.Documents)
	if r.Cached {
		line += " (cached embeddings)"
	}
	if r.Skipped > 0 {
		line += fmt.Sprintf(", skipped %d degenerate", r.Skipped)
	}
	return line + "."
}
