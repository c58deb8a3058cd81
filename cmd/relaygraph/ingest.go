package relaygraph

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/relaygraph/relaygraph/pkg/config"
	"github.com/relaygraph/relaygraph/pkg/logger"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into the knowledge graph",
	Long: `Ingest one or more text files, or stdin when no file is given.
Each file becomes one document; identical content is deduplicated by hash.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().String("name", "", "document name (single file or stdin only)")
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	name, _ := cmd.Flags().GetString("name")
	if name != "" && len(args) > 1 {
		return fmt.Errorf("--name applies to a single document, got %d files", len(args))
	}

	type doc struct {
		name string
		text string
	}
	var docs []doc
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		docs = append(docs, doc{name: name, text: string(data)})
	} else {
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			docName := name
			if docName == "" {
				docName = filepath.Base(path)
			}
			docs = append(docs, doc{name: docName, text: string(data)})
		}
	}

	for _, d := range docs {
		metadata := map[string]string{}
		if d.name != "" {
			metadata["name"] = d.name
		}
		result, err := client.Ingest(cmd.Context(), d.text, metadata)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		if !result.IsNewDocument {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: already ingested (document %s)\n", d.name, result.DocumentID)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: document %s, %d chunks, %d entities, %d relations (%dms)\n",
			d.name, result.DocumentID, result.ChunkCount, result.EntityCount, result.RelationCount, result.ProcessingTimeMs)
	}
	return nil
}
