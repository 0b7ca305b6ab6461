package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarrySoteriou/gallery/internal/chain"
	"github.com/HarrySoteriou/gallery/internal/embedding"
	"github.com/HarrySoteriou/gallery/internal/embedding/embeddingtest"
	"github.com/HarrySoteriou/gallery/internal/llm"
	"github.com/HarrySoteriou/gallery/internal/llm/llmtest"
	"github.com/HarrySoteriou/gallery/internal/logger"
	"github.com/HarrySoteriou/gallery/internal/model"
	"github.com/HarrySoteriou/gallery/internal/store"
)

type fakeMemory struct {
	recordErr error
	searchErr error
	clearErr  error
	// committed, when set, is closed after a record commits; the record
	// then waits for hold before returning.
	committed chan struct{}
	hold      chan struct{}

	mu      sync.Mutex
	records [][]string
	cleared int
	closed  int
}

func (f *fakeMemory) RecordBatchedMemoryItems(ctx context.Context, chunks []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.recordErr != nil {
		return "", f.recordErr
	}
	f.mu.Lock()
	f.records = append(f.records, chunks)
	key := fmt.Sprintf("doc-%d", len(f.records))
	f.mu.Unlock()
	if f.committed != nil {
		close(f.committed)
		<-f.hold
	}
	return key, nil
}

func (f *fakeMemory) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeMemory) Search(ctx context.Context, _ store.SearchParams) ([]model.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, f.searchErr
}

func (f *fakeMemory) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.records = nil
	return nil
}

func (f *fakeMemory) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func hashEmbedder() (embedding.Embedder, error) { return embeddingtest.NewHash(4096), nil }

func withMemory(mem store.Memory) Dependencies {
	return Dependencies{
		NewEmbedder: hashEmbedder,
		NewMemory:   func(embedding.Embedder) (store.Memory, error) { return mem, nil },
	}
}

func newService(t *testing.T, lm *llmtest.Model, opts Options) *Service {
	t.Helper()
	opts.Model = lm
	opts.Logger = logger.Nop()
	s, err := NewService(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fallbackChunks(s *Service) int {
	n := 0
	for _, d := range s.Documents() {
		n += d.ChunkCount
	}
	return n
}

func lastPrompt(t *testing.T, lm *llmtest.Model) string {
	t.Helper()
	prompts := lm.Prompts()
	require.NotEmpty(t, prompts)
	return prompts[len(prompts)-1]
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	session, err := llm.NewSession(&llmtest.Model{}, llm.Config{})
	require.NoError(t, err)

	t.Run("ShouldBuildEveryStep", func(t *testing.T) {
		caps, c := Probe(ctx, withMemory(&fakeMemory{}), session, logger.Nop())
		assert.True(t, caps.Embedder.Available)
		assert.True(t, caps.SemanticMemory.Available)
		assert.True(t, caps.Chain.Available)
		assert.NotNil(t, c.Chain)
	})
	t.Run("ShouldCascadeEmbedderFailure", func(t *testing.T) {
		deps := withMemory(&fakeMemory{})
		deps.NewEmbedder = func() (embedding.Embedder, error) { return nil, embedding.ErrDisabled }
		caps, c := Probe(ctx, deps, session, logger.Nop())
		assert.False(t, caps.Embedder.Available)
		assert.Equal(t, embedding.ErrDisabled.Error(), caps.Embedder.Reason)
		assert.False(t, caps.SemanticMemory.Available)
		assert.NotEmpty(t, caps.SemanticMemory.Reason)
		assert.False(t, caps.Chain.Available)
		assert.Nil(t, c.Memory)
		assert.Nil(t, c.Chain)
	})
	t.Run("ShouldRecoverFromPanics", func(t *testing.T) {
		deps := withMemory(&fakeMemory{})
		deps.NewEmbedder = func() (embedding.Embedder, error) { panic("model file missing") }
		caps, _ := Probe(ctx, deps, session, logger.Nop())
		assert.False(t, caps.Embedder.Available)
		assert.Contains(t, caps.Embedder.Reason, "model file missing")
		assert.False(t, caps.Chain.Available)
	})
	t.Run("ShouldKeepEmbedderWhenMemoryFails", func(t *testing.T) {
		deps := Dependencies{
			NewEmbedder: hashEmbedder,
			NewMemory: func(embedding.Embedder) (store.Memory, error) {
				return nil, errors.New("disk full")
			},
		}
		caps, c := Probe(ctx, deps, session, logger.Nop())
		assert.True(t, caps.Embedder.Available)
		assert.NotNil(t, c.Embedder)
		assert.False(t, caps.SemanticMemory.Available)
		assert.Equal(t, "disk full", caps.SemanticMemory.Reason)
		assert.False(t, caps.Chain.Available)
	})
	t.Run("ShouldTreatMissingConstructorsAsUnavailable", func(t *testing.T) {
		caps, _ := Probe(ctx, Dependencies{}, session, logger.Nop())
		assert.False(t, caps.Embedder.Available)
		assert.False(t, caps.Chain.Available)
	})
}

func TestNewService_RequiresModel(t *testing.T) {
	_, err := NewService(context.Background(), Options{Logger: logger.Nop()})
	require.Error(t, err)
}

func TestService_BackendSelection(t *testing.T) {
	t.Run("ShouldPickChainWhenAvailable", func(t *testing.T) {
		s := newService(t, &llmtest.Model{}, Options{Dependencies: withMemory(&fakeMemory{})})
		assert.Equal(t, KindChain, s.Kind())
		assert.True(t, s.Capabilities().Chain.Available)
	})
	t.Run("ShouldPickFallbackWithoutEmbedder", func(t *testing.T) {
		s := newService(t, &llmtest.Model{}, Options{})
		assert.Equal(t, KindFallback, s.Kind())
		assert.False(t, s.Capabilities().Embedder.Available)
	})
	t.Run("ShouldPickBaseWhenRetrievalDisabled", func(t *testing.T) {
		s := newService(t, &llmtest.Model{}, Options{
			DisableRetrieval: true,
			Dependencies:     withMemory(&fakeMemory{}),
		})
		assert.Equal(t, KindBase, s.Kind())
	})
}

func TestService_Fallback(t *testing.T) {
	ctx := context.Background()
	lm := &llmtest.Model{}
	s := newService(t, lm, Options{MaxChunks: 1})
	require.Equal(t, KindFallback, s.Kind())

	require.NoError(t, s.Memorize(ctx, []string{"The cat sat on the mat.", "Dogs bark loudly at night."}))

	t.Run("ShouldAugmentPromptWithBestChunk", func(t *testing.T) {
		_, err := s.GenerateResponse(ctx, "what did the cat do", nil)
		require.NoError(t, err)
		p := lastPrompt(t, lm)
		assert.Contains(t, p, "Context:\nThe cat sat on the mat.\n\nQuestion: what did the cat do")
		assert.NotContains(t, p, "Dogs")
	})
	t.Run("ShouldPassUnmatchedPromptThrough", func(t *testing.T) {
		_, err := s.GenerateResponse(ctx, "zebra", nil)
		require.NoError(t, err)
		assert.Equal(t, "zebra", lastPrompt(t, lm))
	})
	t.Run("ShouldStreamProgress", func(t *testing.T) {
		var partials []string
		out, err := s.GenerateResponse(ctx, "hello there", func(p string, done bool) {
			partials = append(partials, p)
		})
		require.NoError(t, err)
		require.NotEmpty(t, partials)
		assert.Equal(t, out, partials[len(partials)-1])
	})
}

func TestService_MemorizeText(t *testing.T) {
	ctx := context.Background()
	s := newService(t, &llmtest.Model{}, Options{MaxChunkSize: 500})
	require.NoError(t, s.MemorizeText(ctx, "First paragraph.\n\nSecond paragraph."))
	assert.Equal(t, 2, fallbackChunks(s))
	require.NoError(t, s.MemorizeText(ctx, "   "))
	assert.Equal(t, 2, fallbackChunks(s))
}

func TestService_Chain(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldRecordAndMirror", func(t *testing.T) {
		mem := &fakeMemory{}
		s := newService(t, &llmtest.Model{}, Options{Dependencies: withMemory(mem)})
		require.NoError(t, s.Memorize(ctx, []string{"alpha", "beta"}))
		assert.Len(t, mem.records, 1)
		assert.Equal(t, 2, fallbackChunks(s))
	})
	t.Run("ShouldFallBackWhenRecordFails", func(t *testing.T) {
		mem := &fakeMemory{recordErr: errors.New("vector store offline")}
		s := newService(t, &llmtest.Model{}, Options{Dependencies: withMemory(mem)})
		require.NoError(t, s.Memorize(ctx, []string{"alpha", "beta"}))
		assert.Empty(t, mem.records)
		assert.Equal(t, 2, fallbackChunks(s))
	})
	t.Run("ShouldRetryGenerateThroughFallback", func(t *testing.T) {
		mem := &fakeMemory{searchErr: errors.New("index corrupted")}
		lm := &llmtest.Model{}
		s := newService(t, lm, Options{Dependencies: withMemory(mem)})
		require.NoError(t, s.Memorize(ctx, []string{"The cat sat on the mat."}))

		out, err := s.GenerateResponse(ctx, "where is the cat", nil)
		require.NoError(t, err)
		assert.Contains(t, out, "Context:\nThe cat sat on the mat.")
		assert.Len(t, lm.Prompts(), 1)
	})
	t.Run("ShouldJoinErrorsWhenFallbackFails", func(t *testing.T) {
		searchErr := errors.New("index corrupted")
		modelErr := errors.New("decoder crashed")
		mem := &fakeMemory{searchErr: searchErr}
		lm := &llmtest.Model{Respond: func(string) (string, error) { return "", modelErr }}
		s := newService(t, lm, Options{Dependencies: withMemory(mem)})

		_, err := s.GenerateResponse(ctx, "anything", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, searchErr)
		assert.ErrorIs(t, err, modelErr)
	})
	t.Run("ShouldNotFallBackOnCancellation", func(t *testing.T) {
		lm := &llmtest.Model{}
		s := newService(t, lm, Options{Dependencies: withMemory(&fakeMemory{})})
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.GenerateResponse(cctx, "anything", nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, lm.Prompts())

		err = s.Memorize(cctx, []string{"alpha"})
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, fallbackChunks(s))
	})
	t.Run("ShouldAnswerFromSemanticMemory", func(t *testing.T) {
		deps := Dependencies{
			NewEmbedder: hashEmbedder,
			NewMemory: func(e embedding.Embedder) (store.Memory, error) {
				return store.NewSQLiteStore(store.InMemory, e)
			},
			Chain: chain.Config{NumDocuments: 1},
		}
		lm := &llmtest.Model{}
		s := newService(t, lm, Options{Dependencies: deps})
		require.Equal(t, KindChain, s.Kind())
		require.NoError(t, s.Memorize(ctx, []string{"The cat sat on the mat.", "Dogs bark loudly at night."}))

		_, err := s.GenerateResponse(ctx, "what did the cat do", nil)
		require.NoError(t, err)
		p := lastPrompt(t, lm)
		assert.Contains(t, p, "The cat sat on the mat.")
		assert.NotContains(t, p, "Dogs")
	})
}

func TestService_ClearContext(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldClearBothStores", func(t *testing.T) {
		mem := &fakeMemory{}
		lm := &llmtest.Model{}
		s := newService(t, lm, Options{Dependencies: withMemory(mem)})
		require.NoError(t, s.Memorize(ctx, []string{"The cat sat on the mat."}))

		require.NoError(t, s.ClearContext(ctx))
		require.NoError(t, s.ClearContext(ctx))
		assert.Equal(t, 2, mem.cleared)
		assert.Zero(t, fallbackChunks(s))
	})
	t.Run("ShouldClearFallbackWhenSemanticClearFails", func(t *testing.T) {
		boom := errors.New("locked")
		mem := &fakeMemory{clearErr: boom}
		s := newService(t, &llmtest.Model{}, Options{Dependencies: withMemory(mem)})
		require.NoError(t, s.Memorize(ctx, []string{"alpha"}))

		err := s.ClearContext(ctx)
		require.ErrorIs(t, err, boom)
		assert.Zero(t, fallbackChunks(s))
	})
	t.Run("ShouldLeaveNothingForFallbackGenerate", func(t *testing.T) {
		lm := &llmtest.Model{}
		s := newService(t, lm, Options{})
		require.NoError(t, s.Memorize(ctx, []string{"The cat sat on the mat."}))
		require.NoError(t, s.ClearContext(ctx))
		_, err := s.GenerateResponse(ctx, "what did the cat do", nil)
		require.NoError(t, err)
		assert.Equal(t, "what did the cat do", lastPrompt(t, lm))
	})
}

func TestService_Base(t *testing.T) {
	ctx := context.Background()
	lm := &llmtest.Model{}
	s := newService(t, lm, Options{DisableRetrieval: true})
	require.NoError(t, s.Memorize(ctx, []string{"The cat sat on the mat."}))
	assert.Zero(t, fallbackChunks(s))

	out, err := s.GenerateResponse(ctx, "what did the cat do", nil)
	require.NoError(t, err)
	assert.Equal(t, "echo: what did the cat do", out)
}

func TestService_Close(t *testing.T) {
	ctx := context.Background()
	mem := &fakeMemory{}
	s := newService(t, &llmtest.Model{}, Options{Dependencies: withMemory(mem)})
	require.NoError(t, s.Memorize(ctx, []string{"alpha"}))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, mem.closed)
	assert.Zero(t, fallbackChunks(s))

	assert.ErrorIs(t, s.Memorize(ctx, []string{"beta"}), ErrSessionClosed)
	_, err := s.GenerateResponse(ctx, "x", nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.ClearContext(ctx), ErrSessionClosed)
	_, err = s.Describe(ctx, "x", nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestService_Describe(t *testing.T) {
	lm := &llmtest.Model{Respond: func(string) (string, error) { return " a cat on a mat ", nil }}
	s := newService(t, lm, Options{})
	out, err := s.Describe(context.Background(), "describe", []llm.Image{{MIMEType: "image/jpeg", Data: []byte{1}}})
	require.NoError(t, err)
	assert.Equal(t, "a cat on a mat", out)
	assert.Equal(t, 1, lm.Images())
}

func TestService_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	s := newService(t, &llmtest.Model{}, Options{})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Memorize(ctx, []string{fmt.Sprintf("batch %d about cats", i)}))
		}()
		go func() {
			defer wg.Done()
			_, err := s.GenerateResponse(ctx, "tell me about cats", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, fallbackChunks(s))
}

func TestService_ClearWaitsForInFlightWrite(t *testing.T) {
	ctx := context.Background()
	mem := &fakeMemory{committed: make(chan struct{}), hold: make(chan struct{})}
	s := newService(t, &llmtest.Model{}, Options{Dependencies: withMemory(mem)})

	memorized := make(chan error, 1)
	go func() { memorized <- s.Memorize(ctx, []string{"The cat sat on the mat."}) }()
	<-mem.committed

	cleared := make(chan error, 1)
	go func() { cleared <- s.ClearContext(ctx) }()
	select {
	case err := <-cleared:
		t.Fatalf("ClearContext returned %v before the write finished mirroring", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(mem.hold)
	require.NoError(t, <-memorized)
	require.NoError(t, <-cleared)

	assert.Zero(t, mem.recordCount())
	assert.Zero(t, fallbackChunks(s))
	assert.Empty(t, s.Documents())
}

func TestService_Ask(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldReportFallbackContext", func(t *testing.T) {
		s := newService(t, &llmtest.Model{}, Options{MaxChunks: 1})
		require.NoError(t, s.Memorize(ctx, []string{"Dogs bark loudly at night.", "The cat sat on the mat."}))

		a, err := s.Ask(ctx, "what did the cat do", nil)
		require.NoError(t, err)
		require.Len(t, a.Context, 1)
		assert.Equal(t, "The cat sat on the mat.", a.Context[0].Text)
		assert.Equal(t, 1, a.Context[0].Seq)
		assert.Equal(t, s.Documents()[0].Key, a.Context[0].DocumentKey)
		assert.Equal(t, float64(2), a.Context[0].Score)
	})
	t.Run("ShouldReportChainContext", func(t *testing.T) {
		deps := Dependencies{
			NewEmbedder: hashEmbedder,
			NewMemory: func(e embedding.Embedder) (store.Memory, error) {
				return store.NewSQLiteStore(store.InMemory, e)
			},
			Chain: chain.Config{NumDocuments: 1},
		}
		s := newService(t, &llmtest.Model{}, Options{Dependencies: deps})
		require.NoError(t, s.Memorize(ctx, []string{"The cat sat on the mat.", "Dogs bark loudly at night."}))

		a, err := s.Ask(ctx, "what did the cat do", nil)
		require.NoError(t, err)
		require.Len(t, a.Context, 1)
		assert.Equal(t, "The cat sat on the mat.", a.Context[0].Text)
		assert.Greater(t, a.Context[0].Score, 0.0)
	})
	t.Run("ShouldHaveNoContextWithoutRetrieval", func(t *testing.T) {
		s := newService(t, &llmtest.Model{}, Options{DisableRetrieval: true})
		a, err := s.Ask(ctx, "hello", nil)
		require.NoError(t, err)
		assert.Equal(t, "echo: hello", a.Text)
		assert.Empty(t, a.Context)
	})
}
