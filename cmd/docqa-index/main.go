// docqa-index is the batch ingestion and query tool for the document QA
// pipeline.
//
// Usage:
//
//	docqa-index index --corpus ./docs          # ingest and index a corpus
//	docqa-index ask --question "..."           # answer one question
//	docqa-index count                          # show index and ledger sizes
//	docqa-index version                        # show version information
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/docqa/config"
	"github.com/BaSui01/docqa/internal/metrics"
	"github.com/BaSui01/docqa/internal/telemetry"
	"github.com/BaSui01/docqa/llm"
	"github.com/BaSui01/docqa/llm/embedding"
	"github.com/BaSui01/docqa/llm/rerank"
	"github.com/BaSui01/docqa/llm/tokenizer"
	"github.com/BaSui01/docqa/rag"
)

// Build metadata, injected via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "index":
		runIndex(os.Args[2:])
	case "ask":
		runAsk(os.Args[2:])
	case "count":
		runCount(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// pipeline bundles the wired components shared by the subcommands.
type pipeline struct {
	cfg       *config.Config
	logger    *zap.Logger
	providers *telemetry.Providers
	collector *metrics.Collector
	embedder  embedding.Provider
	store     rag.VectorStore
}

func buildPipeline(configPath string) (*pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := initLogger(cfg.Log)

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	collector := metrics.NewCollector("docqa", prometheus.DefaultRegisterer, logger)

	embedder := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
	}, logger)

	store := rag.NewQdrantStore(rag.QdrantConfig{
		BaseURL:              fmt.Sprintf("http://%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port),
		APIKey:               cfg.Qdrant.APIKey,
		Collection:           cfg.Qdrant.Collection,
		Dimensions:           cfg.Embedding.Dimensions,
		Timeout:              cfg.Qdrant.Timeout,
		AutoCreateCollection: cfg.Qdrant.AutoCreateCollection,
	}, logger)

	return &pipeline{
		cfg:       cfg,
		logger:    logger,
		providers: providers,
		collector: collector,
		embedder:  embedder,
		store:     store,
	}, nil
}

func (p *pipeline) close(ctx context.Context) {
	if p.providers != nil {
		if err := p.providers.Shutdown(ctx); err != nil {
			p.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
	_ = p.logger.Sync()
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	corpus := fs.String("corpus", "", "Directory of .txt/.md documents to index")
	fs.Parse(args)

	if *corpus == "" {
		fmt.Fprintln(os.Stderr, "index: --corpus is required")
		os.Exit(1)
	}

	p, err := buildPipeline(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer p.close(ctx)

	tok := tokenizer.NewTiktokenTokenizer(p.cfg.Chunking.Encoding)
	chunker, err := rag.NewChunker(rag.ChunkingConfig{
		MaxTokens:     p.cfg.Chunking.MaxTokens,
		OverlapTokens: p.cfg.Chunking.OverlapTokens,
	}, tok, p.logger)
	if err != nil {
		p.logger.Fatal("invalid chunking config", zap.Error(err))
	}

	ledger, err := openLedger(p.cfg, p.logger)
	if err != nil {
		p.logger.Warn("fragment ledger unavailable, indexing without it", zap.Error(err))
	}

	ingestor := rag.NewIngestor(chunker, p.collector, p.logger)
	indexer := rag.NewIndexer(p.embedder, p.store, ledger, p.collector, p.logger)

	start := time.Now()
	fragments, err := ingestor.IngestDir(*corpus)
	if err != nil {
		p.logger.Fatal("ingestion failed", zap.Error(err))
	}
	if err := indexer.IndexFragments(ctx, fragments); err != nil {
		p.logger.Fatal("indexing failed", zap.Error(err))
	}

	p.logger.Info("corpus indexed",
		zap.String("corpus", *corpus),
		zap.Int("fragments", len(fragments)),
		zap.Duration("elapsed", time.Since(start)))
	fmt.Printf("Indexed %d fragments from %s\n", len(fragments), *corpus)
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	question := fs.String("question", "", "Question to answer")
	mode := fs.String("mode", "", "Citation policy: strict or hybrid")
	noCitations := fs.Bool("no-citations", false, "Strip [Chunk N] citation markers from the answer")
	fs.Parse(args)

	if *question == "" {
		fmt.Fprintln(os.Stderr, "ask: --question is required")
		os.Exit(1)
	}

	p, err := buildPipeline(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer p.close(ctx)

	retriever := rag.NewRetriever(rag.RetrievalConfig{
		MaxExpansions: p.cfg.Retrieval.MaxExpansions,
		FetchK:        p.cfg.Retrieval.FetchK,
	}, p.embedder, p.store, buildReranker(p.cfg, p.logger), p.collector, p.logger)

	model := llm.New(llm.Config{
		ProviderName:      p.cfg.LLM.Provider,
		APIKey:            p.cfg.LLM.APIKey,
		BaseURL:           p.cfg.LLM.BaseURL,
		Model:             p.cfg.LLM.Model,
		Temperature:       p.cfg.LLM.Temperature,
		Timeout:           p.cfg.LLM.Timeout,
		RequestsPerMinute: p.cfg.LLM.RequestsPerMinute,
	}, p.logger)

	composer := rag.NewComposer(rag.AnswerConfig{
		HistoryWindow: p.cfg.Answer.HistoryWindow,
		PreviewChars:  p.cfg.Answer.PreviewChars,
		PoolK:         p.cfg.Retrieval.AnswerPoolK,
	}, retriever, model, p.collector, p.logger)

	askMode := rag.Mode(*mode)
	if askMode == "" {
		askMode = rag.Mode(p.cfg.Answer.DefaultMode)
	}

	result, err := composer.Answer(ctx, rag.AnswerRequest{
		Question:      *question,
		Mode:          askMode,
		HideCitations: *noCitations,
	})
	if err != nil {
		p.logger.Fatal("answer failed", zap.Error(err))
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func runCount(args []string) {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	fs.Parse(args)

	p, err := buildPipeline(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	defer p.close(ctx)

	n, err := p.store.Count(ctx)
	if err != nil {
		p.logger.Fatal("index count failed", zap.Error(err))
	}
	fmt.Printf("Index: %d fragments\n", n)

	ledger, err := openLedger(p.cfg, p.logger)
	if err == nil {
		if rows, lerr := ledger.Count(ctx); lerr == nil {
			fmt.Printf("Ledger: %d fragments\n", rows)
		}
	}
}

func openLedger(cfg *config.Config, logger *zap.Logger) (*rag.FragmentStore, error) {
	db, err := rag.OpenDatabase(cfg.Database.Driver, cfg.Database.DSN,
		cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	logger.Info("fragment ledger connected", zap.String("driver", cfg.Database.Driver))
	return rag.NewFragmentStore(db)
}

func buildReranker(cfg *config.Config, logger *zap.Logger) rag.Reranker {
	switch cfg.Rerank.Provider {
	case "cohere":
		return rag.NewProviderReranker(rerank.NewCohereProvider(rerank.CohereConfig{
			APIKey:  cfg.Rerank.APIKey,
			BaseURL: cfg.Rerank.BaseURL,
			Model:   cfg.Rerank.Model,
			Timeout: cfg.Rerank.Timeout,
		}, logger), logger)
	default:
		return rag.NoopReranker{}
	}
}

func printVersion() {
	fmt.Printf("docqa-index %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`docqa-index - document QA ingestion and query tool

Usage:
  docqa-index <command> [options]

Commands:
  index     Ingest a corpus directory and write it to the vector index
  ask       Answer one question against the index
  count     Show index and ledger fragment counts
  version   Show version information
  help      Show this help message

Options for 'index':
  --config <path>   Path to configuration file (YAML)
  --corpus <dir>    Directory of .txt/.md documents

Options for 'ask':
  --config <path>   Path to configuration file (YAML)
  --question <q>    Question to answer
  --mode <m>        strict or hybrid (default from config)
  --no-citations    Strip [Chunk N] markers from the answer

Examples:
  docqa-index index --corpus ./docs
  docqa-index ask --question "How is overlap configured?"
  docqa-index ask --question "..." --mode hybrid --no-citations
  docqa-index count`)
}

// initLogger builds the zap logger from config.
func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
