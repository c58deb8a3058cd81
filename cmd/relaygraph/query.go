package relaygraph

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	rg "github.com/relaygraph/relaygraph"
	"github.com/relaygraph/relaygraph/pkg/config"
	"github.com/relaygraph/relaygraph/pkg/logger"
	"github.com/relaygraph/relaygraph/pkg/search"
	"github.com/relaygraph/relaygraph/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Query the knowledge graph",
	Long: `Run hybrid retrieval for a question and print the fused chunks,
entities, and knowledge-graph triples. With --answer the retrieved
context is additionally passed to the model for a synthesized answer.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().Int("max-chunks", 0, "maximum chunks to return")
	queryCmd.Flags().Int("max-entities", 0, "maximum entities to return")
	queryCmd.Flags().Int("max-triples", 0, "maximum knowledge-graph triples to return")
	queryCmd.Flags().StringSlice("methods", nil, "search methods (lexical, semantic, graph)")
	queryCmd.Flags().String("reranker", "", "reranker (rrf, cross_encoder, mmr, noop)")
	queryCmd.Flags().Bool("answer", false, "synthesize an answer from the retrieved context")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	client, err := buildClient(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer client.Close()

	question := strings.Join(args, " ")

	opts := &rg.RetrieveOptions{}
	opts.MaxChunks, _ = cmd.Flags().GetInt("max-chunks")
	opts.MaxEntities, _ = cmd.Flags().GetInt("max-entities")
	opts.MaxGraphTriples, _ = cmd.Flags().GetInt("max-triples")
	if reranker, _ := cmd.Flags().GetString("reranker"); reranker != "" {
		opts.Reranker = search.RerankerType(reranker)
	}
	if methods, _ := cmd.Flags().GetStringSlice("methods"); len(methods) > 0 {
		for _, method := range methods {
			opts.Methods = append(opts.Methods, types.SearchMethod(method))
		}
	}

	result, err := client.Retrieve(cmd.Context(), question, opts)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chunks (%d):\n", len(result.Chunks))
	for i, chunk := range result.Chunks {
		fmt.Fprintf(out, "  [%d] %.3f  %s\n", i+1, chunk.Score, firstLine(chunk.Item.Content))
	}
	fmt.Fprintf(out, "Entities (%d):\n", len(result.Entities))
	for _, entity := range result.Entities {
		fmt.Fprintf(out, "  %.3f  %s (%s)\n", entity.Score, entity.Item.Name, entity.Item.Type)
	}
	fmt.Fprintf(out, "Knowledge graph (%d):\n", len(result.KnowledgeGraph))
	for _, triple := range result.KnowledgeGraph {
		fmt.Fprintf(out, "  %s -[%s]-> %s\n", triple.Source.Name, triple.Relationship, triple.Target.Name)
	}

	if answer, _ := cmd.Flags().GetBool("answer"); answer {
		text, err := client.Synthesize(cmd.Context(), question, result)
		if err != nil {
			return fmt.Errorf("synthesis failed: %w", err)
		}
		fmt.Fprintf(out, "\nAnswer:\n%s\n", text)
	}
	return nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 120 {
		text = text[:120] + "..."
	}
	return text
}
