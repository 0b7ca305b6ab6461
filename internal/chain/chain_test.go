package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarrySoteriou/gallery/internal/embedding/embeddingtest"
	"github.com/HarrySoteriou/gallery/internal/llm"
	"github.com/HarrySoteriou/gallery/internal/llm/llmtest"
	"github.com/HarrySoteriou/gallery/internal/model"
	"github.com/HarrySoteriou/gallery/internal/store"
)

type failingSearcher struct{ err error }

func (f failingSearcher) Search(context.Context, store.SearchParams) ([]model.Match, error) {
	return nil, f.err
}

func newSession(t *testing.T, m *llmtest.Model) *llm.Session {
	t.Helper()
	s, err := llm.NewSession(m, llm.Config{})
	require.NoError(t, err)
	return s
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, newSession(t, &llmtest.Model{}), Config{})
	require.Error(t, err)
	_, err = New(failingSearcher{}, nil, Config{})
	require.Error(t, err)
}

func TestChain_Invoke(t *testing.T) {
	ctx := context.Background()
	mem, err := store.NewSQLiteStore(store.InMemory, embeddingtest.NewHash(4096))
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	_, err = mem.RecordBatchedMemoryItems(ctx, []string{"The cat sat on the mat.", "Dogs bark loudly at night."})
	require.NoError(t, err)

	lm := &llmtest.Model{Respond: func(string) (string, error) { return "It sat on the mat.", nil }}
	c, err := New(mem, newSession(t, lm), Config{NumDocuments: 1})
	require.NoError(t, err)

	t.Run("ShouldAugmentWithRetrievedContext", func(t *testing.T) {
		var final string
		resp, err := c.Invoke(ctx, Request{Prompt: "what did the cat do"}, func(p string, done bool) {
			if done {
				final = p
			}
		})
		require.NoError(t, err)
		assert.Equal(t, "It sat on the mat.", resp.Text)
		assert.Equal(t, "It sat on the mat.", final)
		require.Len(t, resp.Context, 1)
		assert.Equal(t, "The cat sat on the mat.", resp.Context[0].Text)

		prompts := lm.Prompts()
		require.NotEmpty(t, prompts)
		assert.Contains(t, prompts[len(prompts)-1], "Context:\nThe cat sat on the mat.")
		assert.Contains(t, prompts[len(prompts)-1], "Question: what did the cat do")
	})
	t.Run("ShouldPassPromptUnchangedWithoutMatches", func(t *testing.T) {
		_, err := c.Invoke(ctx, Request{Prompt: "zebra"}, nil)
		require.NoError(t, err)
		prompts := lm.Prompts()
		assert.Equal(t, "zebra", prompts[len(prompts)-1])
	})
}

func TestChain_SearchError(t *testing.T) {
	boom := errors.New("vector store offline")
	c, err := New(failingSearcher{err: boom}, newSession(t, &llmtest.Model{}), Config{})
	require.NoError(t, err)
	_, err = c.Invoke(context.Background(), Request{Prompt: "x"}, nil)
	require.ErrorIs(t, err, boom)
}
