package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarrySoteriou/gallery/internal/store"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Empty(t, cfg.Embedder.Provider)
	assert.Equal(t, store.InMemory, cfg.SemanticMemory.Path)
	assert.Equal(t, 500, cfg.Chunker.MaxChunkSize)
	assert.Equal(t, 3, cfg.Fallback.MaxChunks)
	assert.Equal(t, 5, cfg.Video.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
embedder:
  provider: ollama
  model: nomic-embed-text
  cache_size: 128
chunker:
  max_chunk_size: 200
fallback:
  disable_retrieval: true
`), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Chunker.MaxChunkSize)
	assert.True(t, cfg.Fallback.DisableRetrieval)
	assert.Equal(t, 3, cfg.Fallback.MaxChunks)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, "sk-test", cfg.LLMOptions().APIKey)
	assert.Equal(t, 128, cfg.EmbeddingOptions().CacheSize)
	assert.Empty(t, cfg.EmbeddingOptions().APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GALLERY_EMBEDDER_PROVIDER", "openai")
	t.Setenv("GALLERY_DB_PATH", "/tmp/gallery.db")
	t.Setenv("GALLERY_MAX_CHUNKS", "7")
	t.Setenv("GALLERY_DISABLE_RETRIEVAL", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "/tmp/gallery.db", cfg.SemanticMemory.Path)
	assert.Equal(t, 7, cfg.Fallback.MaxChunks)
	assert.True(t, cfg.Fallback.DisableRetrieval)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("ShouldRejectBadYAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("llm: [unterminated"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
	t.Run("ShouldRejectBadInteger", func(t *testing.T) {
		t.Setenv("GALLERY_MAX_CHUNK_SIZE", "lots")
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "GALLERY_MAX_CHUNK_SIZE")
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gallery.yaml")
	want := Default()
	want.Video.Concurrency = 4
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fallback:\n  max_chunks: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Fallback.MaxChunks)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llava", cfg.LLM.Model)
	assert.Equal(t, Default().LLM, cfg.LLM)
	assert.Equal(t, 500, cfg.Chunker.MaxChunkSize)
}
