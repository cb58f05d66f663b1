package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/askmydocs/internal/core/domain"
)

func newIndexCommand(resolve func() (*Services, error)) *cobra.Command {
	var docsDir string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the index from the documents directory",
		Long: `Reads every supported file under the documents directory, chunks and
embeds it, and replaces the persisted index. Existing rows are discarded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := services(resolve)
			if err != nil {
				return err
			}
			report, err := svc.Indexer.Rebuild(cmd.Context(), pickDocsDir(docsDir, svc))
			if err != nil {
				return err
			}
			printReport(cmd, "rebuilt", report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&docsDir, "docs", "d", "", "documents directory (default DOCS_DIR)")
	return cmd
}

func newAppendCommand(resolve func() (*Services, error)) *cobra.Command {
	var docsDir string
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append documents to the existing index",
		Long: `Chunks and embeds every supported file under the given directory and
adds the rows after the existing ones. The directory must be the documents
directory or lie inside it; document ids stay relative to the documents
directory and files that are already indexed are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := services(resolve)
			if err != nil {
				return err
			}
			report, err := svc.Indexer.AppendFrom(cmd.Context(), svc.DocsDir, pickDocsDir(docsDir, svc))
			if err != nil {
				return err
			}
			printReport(cmd, "appended", report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&docsDir, "docs", "d", "", "directory inside DOCS_DIR to append (default DOCS_DIR)")
	return cmd
}

func pickDocsDir(flag string, svc *Services) string {
	if flag != "" {
		return flag
	}
	return svc.DocsDir
}

func printReport(cmd *cobra.Command, verb string, report *domain.IndexReport) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d chunks from %d documents; index now has %d rows (dim %d) in %dms\n",
		verb, report.Chunks, report.Documents, report.TotalRows, report.Dimension, report.DurationMS)
}
