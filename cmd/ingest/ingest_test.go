package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/manifest"
	"github.com/ashishroygit/medical-chatbot-enterprise/search"
)

func TestChunkWords(t *testing.T) {
	text := "one two three four five six seven eight nine ten"

	chunks := chunkWords(text, 4, 1)
	assert.Equal(t, []string{
		"one two three four",
		"four five six seven",
		"seven eight nine ten",
	}, chunks)
}

func TestChunkWordsEdgeCases(t *testing.T) {
	assert.Nil(t, chunkWords("   \n\t ", 10, 2))
	assert.Equal(t, []string{"short text"}, chunkWords("short  text", 10, 2))
	assert.Equal(t, []string{"a b", "c d", "e"}, chunkWords("a b c d e", 2, 5), "overlap >= size falls back to no overlap")
	assert.Len(t, chunkWords(strings.Repeat("w ", defaultChunkSize+1), 0, 0), 2)
}

func TestChunkID(t *testing.T) {
	a := chunkID("feed", "https://medlineplus.gov/migraine.html", 0)
	b := chunkID("feed", "https://medlineplus.gov/migraine.html", 1)
	c := chunkID("feed", "https://medlineplus.gov/asthma.html", 0)

	assert.True(t, strings.HasPrefix(a, "feed-"))
	assert.True(t, strings.HasSuffix(a, "-chunk-0"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, chunkID("feed", "https://medlineplus.gov/migraine.html", 0))
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1, 2}
	}
	return vectors, nil
}

type fakeStore struct {
	search.VectorStore
	dims    int
	ensured int
	docs    []search.Document
}

func (f *fakeStore) EnsureIndex(_ context.Context, dims int) error {
	f.ensured++
	f.dims = dims
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, docs []search.Document) error {
	f.docs = append(f.docs, docs...)
	return nil
}

func newTestPipeline(t *testing.T) (*pipeline, *fakeEmbedder, *fakeStore) {
	t.Helper()
	dir := t.TempDir()
	sources, err := manifest.Load(dir)
	require.NoError(t, err)

	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	return &pipeline{
		embedder:  embedder,
		store:     store,
		sources:   sources,
		dataDir:   dir,
		chunkSize: 4,
		overlap:   1,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, embedder, store
}

func TestPipelineIngest(t *testing.T) {
	p, embedder, store := newTestPipeline(t)

	src := source{
		SourceData: manifest.SourceData{Kind: "pdf", Title: "Gale", Link: "https://example.org", GUID: "g1"},
		Text:       "one two three four five six seven eight nine ten",
	}
	require.NoError(t, p.ingest(context.Background(), src))

	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 1, store.ensured)
	assert.Equal(t, 3, store.dims)
	require.Len(t, store.docs, 3)
	assert.Equal(t, chunkID("pdf", "g1", 0), store.docs[0].ID)
	assert.Equal(t, "Gale", store.docs[0].Title)
	assert.Equal(t, "pdf", store.docs[0].Source)
	assert.Equal(t, "four five six seven", store.docs[1].Content)

	reloaded, err := manifest.Load(p.dataDir)
	require.NoError(t, err)
	require.True(t, reloaded.Has("g1"))
	assert.Equal(t, 3, reloaded.Sources["g1"].Chunks)

	// second source reuses the prepared index
	require.NoError(t, p.ingest(context.Background(), source{
		SourceData: manifest.SourceData{Kind: "pdf", GUID: "g2"},
		Text:       "eleven twelve",
	}))
	assert.Equal(t, 1, store.ensured)
	assert.Len(t, store.docs, 4)
}

func TestPipelineSkipsKnownSources(t *testing.T) {
	p, embedder, store := newTestPipeline(t)
	p.sources.Record(manifest.SourceData{GUID: "seen"})

	require.NoError(t, p.ingest(context.Background(), source{
		SourceData: manifest.SourceData{GUID: "seen"},
		Text:       "some text",
	}))
	assert.Zero(t, embedder.calls)
	assert.Empty(t, store.docs)

	p.force = true
	require.NoError(t, p.ingest(context.Background(), source{
		SourceData: manifest.SourceData{GUID: "seen"},
		Text:       "some text",
	}))
	assert.Equal(t, 1, embedder.calls)
}

func TestPipelineEmptyText(t *testing.T) {
	p, embedder, _ := newTestPipeline(t)

	require.NoError(t, p.ingest(context.Background(), source{SourceData: manifest.SourceData{GUID: "empty"}}))
	assert.Zero(t, embedder.calls)
	assert.False(t, p.sources.Has("empty"))
}

func TestPipelineEmbeddingFailure(t *testing.T) {
	p, embedder, store := newTestPipeline(t)
	embedder.err = errors.New("rate limited")

	err := p.ingest(context.Background(), source{SourceData: manifest.SourceData{GUID: "g"}, Text: "a b c"})
	assert.ErrorContains(t, err, "rate limited")
	assert.Zero(t, store.ensured)
	assert.False(t, p.sources.Has("g"))
}

func TestFeedSource(t *testing.T) {
	src := feedSource(&gofeed.Item{
		Title:       "Migraine",
		Link:        "https://medlineplus.gov/migraine.html",
		Description: "<p>Migraines are <b>recurring</b> headaches.</p>\n<ul><li>Aura</li></ul>",
		Published:   "Mon, 02 Jan 2006 15:04:05 MST",
	})

	assert.Equal(t, "feed", src.Kind)
	assert.Equal(t, "https://medlineplus.gov/migraine.html", src.GUID, "link is used when the item has no guid")
	assert.Equal(t, "Migraine\n\nMigraines are recurring headaches. Aura", src.Text)
}

func TestFeedSourcePrefersContent(t *testing.T) {
	src := feedSource(&gofeed.Item{
		GUID:        "item-1",
		Title:       "Asthma",
		Description: "short",
		Content:     "<div>long form content</div>",
	})
	assert.Equal(t, "item-1", src.GUID)
	assert.Contains(t, src.Text, "long form content")
	assert.NotContains(t, src.Text, "short")
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "B.PDF", "notes.txt", "talk.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	files, err := listFiles(dir, ".pdf")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pdf", "B.PDF"}, files)
}

type fakeTranscriber struct {
	paths []string
}

func (f *fakeTranscriber) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	f.paths = append(f.paths, req.FilePath)
	return openai.AudioResponse{Text: "patient reports headaches"}, nil
}

func TestTranscribeSmallFile(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	tr := &fakeTranscriber{}
	p.transcriber = tr

	require.NoError(t, os.WriteFile(filepath.Join(p.dataDir, "episode.mp3"), []byte("not really audio"), 0644))
	guid, err := fileGUID(filepath.Join(p.dataDir, "episode.mp3"))
	require.NoError(t, err)

	text, err := p.transcribe(context.Background(), guid, "episode.mp3")
	require.NoError(t, err)
	assert.Equal(t, "patient reports headaches", strings.TrimSpace(text))
	assert.Equal(t, []string{filepath.Join(p.dataDir, "episode.mp3")}, tr.paths)
}

func TestChunkPrefix(t *testing.T) {
	assert.Equal(t, "abc-chunked-", chunkPrefix("abc"))
	assert.Equal(t, "0123456789abcdef-chunked-", chunkPrefix("0123456789abcdef0123"))
}

func TestSubcommandFlags(t *testing.T) {
	type parsed struct {
		dataDir   string
		chunkSize int
		force     bool
		url       string
	}

	tests := []struct {
		name     string
		args     []string
		expected parsed
	}{
		{
			name:     "pdf with flags after the subcommand",
			args:     []string{"ingest", "pdf", "--data-dir", "books", "--chunk-size", "50", "--force"},
			expected: parsed{dataDir: "books", chunkSize: 50, force: true},
		},
		{
			name:     "pdf defaults",
			args:     []string{"ingest", "pdf"},
			expected: parsed{dataDir: manifest.DefaultDataDirectory, chunkSize: defaultChunkSize},
		},
		{
			name:     "feed mixes shared and own flags",
			args:     []string{"ingest", "feed", "--url", "https://medlineplus.gov/feeds/whatsnew.xml", "--data-dir", "feeds"},
			expected: parsed{dataDir: "feeds", chunkSize: defaultChunkSize, url: "https://medlineplus.gov/feeds/whatsnew.xml"},
		},
		{
			name:     "audio",
			args:     []string{"ingest", "audio", "--data-dir", "podcasts", "--chunk-overlap", "10"},
			expected: parsed{dataDir: "podcasts", chunkSize: defaultChunkSize},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DATA_DIR", "")
			require.NoError(t, os.Unsetenv("DATA_DIR"))

			var got parsed
			ran := false
			commands := Commands()
			for _, cmd := range commands {
				cmd.Action = func(ctx *cli.Context) error {
					ran = true
					got = parsed{
						dataDir:   ctx.String("data-dir"),
						chunkSize: ctx.Int("chunk-size"),
						force:     ctx.Bool("force"),
						url:       ctx.String("url"),
					}
					return nil
				}
			}

			app := &cli.App{
				Name:     "medchat",
				Commands: []*cli.Command{{Name: "ingest", Subcommands: commands}},
			}
			require.NoError(t, app.Run(append([]string{"medchat"}, tc.args...)))
			require.True(t, ran)
			assert.Equal(t, tc.expected, got)
		})
	}
}
