package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/chain"
	"github.com/ashishroygit/medical-chatbot-enterprise/config"
	"github.com/ashishroygit/medical-chatbot-enterprise/embedding"
	"github.com/ashishroygit/medical-chatbot-enterprise/manifest"
	"github.com/ashishroygit/medical-chatbot-enterprise/search"
)

const (
	defaultChunkSize    = 100
	defaultChunkOverlap = 5

	// documents per bulk write
	upsertBatchSize = 100
)

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Value:   manifest.DefaultDataDirectory,
			Usage:   "Directory holding source files and the ingest manifest",
			EnvVars: []string{"DATA_DIR"},
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Value: defaultChunkSize,
			Usage: "Words per indexed chunk",
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Value: defaultChunkOverlap,
			Usage: "Words shared between neighbouring chunks",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Re-index sources already recorded in the manifest",
		},
	}
}

// Commands returns the ingest subcommands. Each carries the shared Flags so they can follow
// the subcommand name, e.g. `ingest pdf --data-dir data`.
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "pdf",
			Usage:  "Index every PDF in the data directory",
			Flags:  Flags(),
			Action: PDF,
		},
		{
			Name:  "feed",
			Usage: "Index the items of an RSS or Atom feed",
			Flags: append(Flags(),
				&cli.StringFlag{
					Name:     "url",
					Usage:    "Feed URL",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "max-items",
					Value: 50,
					Usage: "Maximum number of new items to index",
				},
			),
			Action: Feed,
		},
		{
			Name:   "audio",
			Usage:  "Transcribe audio files in the data directory with Whisper and index the transcripts",
			Flags:  Flags(),
			Action: Audio,
		},
	}
}

type documentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type source struct {
	manifest.SourceData
	Text string
}

type pipeline struct {
	embedder   documentEmbedder
	store      search.VectorStore
	sources    *manifest.Sources
	dataDir    string
	chunkSize  int
	overlap    int
	force      bool
	indexReady bool
	logger     *slog.Logger

	transcriber transcriber
}

func newPipeline(ctx *cli.Context) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := search.Open(ctx.Context, cfg, search.IndexName)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	dataDir := ctx.String("data-dir")
	sources, err := manifest.Load(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load ingest manifest: %w", err)
	}

	openaiClient := chain.NewOpenAIClient(cfg)
	return &pipeline{
		embedder:    embedding.New(openaiClient, embedding.DefaultModel),
		store:       store,
		sources:     sources,
		dataDir:     dataDir,
		chunkSize:   ctx.Int("chunk-size"),
		overlap:     ctx.Int("chunk-overlap"),
		force:       ctx.Bool("force"),
		logger:      slog.Default(),
		transcriber: openaiClient,
	}, nil
}

// known reports whether guid was indexed by an earlier run and should be skipped.
func (p *pipeline) known(guid string) bool {
	return !p.force && p.sources.Has(guid)
}

func (p *pipeline) ingest(ctx context.Context, src source) error {
	if p.known(src.GUID) {
		p.logger.InfoContext(ctx, "skipping existing source", slog.String("guid", src.GUID), slog.String("title", src.Title))
		return nil
	}

	chunks := chunkWords(src.Text, p.chunkSize, p.overlap)
	if len(chunks) == 0 {
		p.logger.WarnContext(ctx, "source has no text to index", slog.String("guid", src.GUID), slog.String("title", src.Title))
		return nil
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed %s (%s): %w", src.GUID, src.Title, err)
	}

	if !p.indexReady {
		if err := p.store.EnsureIndex(ctx, len(vectors[0])); err != nil {
			return fmt.Errorf("failed to prepare vector index: %w", err)
		}
		p.indexReady = true
	}

	docs := make([]search.Document, len(chunks))
	for i := range chunks {
		docs[i] = search.Document{
			ID:      chunkID(src.Kind, src.GUID, i),
			Title:   src.Title,
			Link:    src.Link,
			Source:  src.Kind,
			Content: chunks[i],
			Vectors: vectors[i],
		}
	}
	for start := 0; start < len(docs); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(docs))
		if err := p.store.Upsert(ctx, docs[start:end]); err != nil {
			return fmt.Errorf("failed to index %s (%s): %w", src.GUID, src.Title, err)
		}
	}

	src.Chunks = len(docs)
	p.sources.Record(src.SourceData)
	if err := p.sources.Update(); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "indexed source",
		slog.String("kind", src.Kind),
		slog.String("title", src.Title),
		slog.Int("chunks", len(docs)),
	)
	return nil
}

func fileGUID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
