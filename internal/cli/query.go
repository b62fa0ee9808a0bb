package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/woxQAQ/sqlcursor/internal/codeblock"
	"github.com/woxQAQ/sqlcursor/internal/completion"
	"github.com/woxQAQ/sqlcursor/pkg/protocol"
)

// cursorFlags locates the cursor in a file, either by 0-based line and byte
// column or by byte offset.
type cursorFlags struct {
	line   int
	col    int
	offset int
}

func (f *cursorFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.line, "line", 0, "0-based cursor line")
	cmd.Flags().IntVar(&f.col, "col", 0, "0-based cursor column in bytes")
	cmd.Flags().IntVar(&f.offset, "offset", -1, "Cursor byte offset (overrides --line/--col)")
}

func (f *cursorFlags) cursor(doc *codeblock.Document) int {
	if f.offset >= 0 {
		return min(f.offset, len(doc.Text))
	}
	return doc.OffsetAt(protocol.Position{Line: f.line, Character: f.col})
}

func readDocument(path string) (*codeblock.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return codeblock.NewDocument(string(data)), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type resolveResult struct {
	*codeblock.Block
	Identifiers []string             `json:"identifiers"`
	TableRefs   []codeblock.TableRef `json:"tableRefs"`
}

func newResolveCommand(opts *options) *cobra.Command {
	var (
		at       cursorFlags
		smallest bool
	)

	cmd := &cobra.Command{
		Use:   "resolve FILE",
		Short: "Print the statement under the cursor",
		Example: `  # The statement on the fourth line
  sqlcursor resolve report.sql --line 3 --col 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}

			ropts := opts.cfg.ResolverOptions()
			ropts.SmallestBlock = ropts.SmallestBlock || smallest

			block := codeblock.Resolve(doc, at.cursor(doc), ropts)
			return writeJSON(cmd.OutOrStdout(), resolveResult{
				Block:       block,
				Identifiers: block.Identifiers(),
				TableRefs:   block.TableRefs(),
			})
		},
	}

	at.register(cmd)
	cmd.Flags().BoolVar(&smallest, "smallest", false, "Narrow to the innermost parenthesized statement")
	return cmd
}

type completeResult struct {
	StartLine  int                       `json:"startLine"`
	EndLine    int                       `json:"endLine"`
	Candidates []completion.Candidate    `json:"candidates"`
	Items      []protocol.CompletionItem `json:"items,omitempty"`
}

func newCompleteCommand(opts *options) *cobra.Command {
	var (
		at          cursorFlags
		catalogFile string
		items       bool
	)

	cmd := &cobra.Command{
		Use:     "complete FILE",
		Short:   "Print completion candidates at the cursor",
		Example: `  sqlcursor complete report.sql --offset 14 --catalog catalog.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			if catalogFile != "" {
				opts.cfg.Catalog.SnapshotFile = catalogFile
			}

			ctx := commandContext(cmd)
			sources, err := openCatalog(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer sources.close(opts.logger)

			classifier := completion.NewClassifier(opts.logger, opts.cfg.CompletionOptions())
			block := codeblock.Resolve(doc, at.cursor(doc), opts.cfg.ResolverOptions())
			cands := classifier.Classify(ctx, block, sources.snapshot, sources.lookup)

			res := completeResult{
				StartLine:  block.StartLine,
				EndLine:    block.EndLine,
				Candidates: cands,
			}
			if items {
				res.Items = classifier.Items(block, cands)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	at.register(cmd)
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "Catalog snapshot file (overrides catalog.snapshot_file)")
	cmd.Flags().BoolVar(&items, "items", false, "Also print LSP completion items")
	return cmd
}
