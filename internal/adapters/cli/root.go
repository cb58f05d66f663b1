// Package cli is the askctl command tree: offline index builds, ad-hoc
// queries and the MCP stdio server.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/askmydocs/internal/core/ports"
)

// Services are resolved lazily so that --help and argument errors never
// touch the index or the model providers.
type Services struct {
	Indexer  ports.CorpusIndexer
	Answerer ports.QuestionAnswerer
	Searcher ports.ChunkSearcher

	DocsDir string
	TopK    int

	// ServeMCP blocks serving MCP over stdio.
	ServeMCP func() error
}

func NewRootCommand(resolve func() (*Services, error)) *cobra.Command {
	root := &cobra.Command{
		Use:           "askctl",
		Short:         "Build and query the askmydocs index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newIndexCommand(resolve),
		newAppendCommand(resolve),
		newSearchCommand(resolve),
		newAskCommand(resolve),
		newMCPCommand(resolve),
	)
	return root
}

func services(resolve func() (*Services, error)) (*Services, error) {
	if resolve == nil {
		return nil, errors.New("services not configured")
	}
	svc, err := resolve()
	if err != nil {
		return nil, fmt.Errorf("init services: %w", err)
	}
	return svc, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
