package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

func newSearchCommand(resolve func() (*Services, error)) *cobra.Command {
	var (
		k      int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Show the top-k chunks for a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := services(resolve)
			if err != nil {
				return err
			}
			if k <= 0 {
				k = svc.TopK
			}
			results, err := svc.Searcher.Search(cmd.Context(), args[0], k)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
				return nil
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s (%.4f)\n", r.Rank, r.Source, r.Score)
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", preview(r.Text, 160))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of chunks (default RAG_TOP_K)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func newAskCommand(resolve func() (*Services, error)) *cobra.Command {
	var (
		provider string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := services(resolve)
			if err != nil {
				return err
			}
			answer, err := svc.Answerer.Answer(cmd.Context(), args[0], domain.Provider(strings.ToLower(provider)))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, answer)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
			if len(answer.Chunks) > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "Sources:")
				for _, c := range answer.Chunks {
					fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s (%.4f)\n", c.Rank, c.Source, c.Score)
				}
			}
			if answer.Status == domain.AnswerNotReady {
				return errors.New(answer.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "generation backend: ollama, gemini or openai (default LLM_PROVIDER)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the answer as JSON")
	return cmd
}

func newMCPCommand(resolve func() (*Services, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve search and ask tools over MCP stdio",
		Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
search_documents and ask_documents tools.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := services(resolve)
			if err != nil {
				return err
			}
			if svc.ServeMCP == nil {
				return errors.New("mcp server not configured")
			}
			return svc.ServeMCP()
		},
	}
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
