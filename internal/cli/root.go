// Package cli implements the gallery CLI commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/HarrySoteriou/gallery/internal/config"
	"github.com/HarrySoteriou/gallery/internal/embedding"
	"github.com/HarrySoteriou/gallery/internal/llm"
	"github.com/HarrySoteriou/gallery/internal/logger"
	"github.com/HarrySoteriou/gallery/internal/rag"
	"github.com/HarrySoteriou/gallery/internal/store"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
	formatFlag string

	cfg *config.Config
	log logger.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Retrieval-augmented chat and video analysis over local models",
	Long: "Chunk and memorize text, ask questions answered from that memory, and describe video frames " +
		"into memory. Uses an embedding-backed chain when an embedder is configured and keyword retrieval otherwise.",
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $GALLERY_CONFIG or ./gallery.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = os.Getenv("GALLERY_CONFIG")
	}
	if path == "" {
		path = config.DefaultPath
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		c.Log.JSON = logJSON
	}
	cfg = c

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(cfg.Log.Level)
	logCfg.JSON = cfg.Log.JSON
	logger.Init(logCfg)
	log = logger.Default()
	return nil
}

// newService builds a session from the loaded config. The language model
// must construct; the embedding chain may degrade to keyword retrieval.
func newService(ctx context.Context) (*rag.Service, error) {
	model, err := llm.NewModel(cfg.LLMOptions())
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	embCfg := cfg.EmbeddingOptions()
	return rag.NewService(ctx, rag.Options{
		Model: model,
		LLM:   cfg.LLMOptions(),
		Dependencies: rag.Dependencies{
			NewEmbedder: func() (embedding.Embedder, error) {
				return embedding.NewFromConfig(embCfg)
			},
			NewMemory: func(e embedding.Embedder) (store.Memory, error) {
				return store.NewSQLiteStore(cfg.SemanticMemory.Path, e)
			},
			Chain: cfg.ChainOptions(),
		},
		DisableRetrieval: cfg.Fallback.DisableRetrieval,
		MaxChunks:        cfg.Fallback.MaxChunks,
		MaxChunkSize:     cfg.Chunker.MaxChunkSize,
		Logger:           log,
	})
}

// openStore opens the configured semantic memory directly.
func openStore() (*store.SQLiteStore, error) {
	if cfg.SemanticMemory.Path == store.InMemory {
		return nil, errors.New("semantic_memory.path is \":memory:\"; set a file path to manage stored documents")
	}
	emb, err := embedding.NewFromConfig(cfg.EmbeddingOptions())
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	return store.NewSQLiteStore(cfg.SemanticMemory.Path, emb)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
