// Package rag selects, once per session, which backend serves memorize and
// generate calls, and falls back from the embedding-backed chain to the
// in-process keyword store when the chain is unavailable or fails.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/HarrySoteriou/gallery/internal/chain"
	"github.com/HarrySoteriou/gallery/internal/chunker"
	"github.com/HarrySoteriou/gallery/internal/llm"
	"github.com/HarrySoteriou/gallery/internal/logger"
	"github.com/HarrySoteriou/gallery/internal/memstore"
	"github.com/HarrySoteriou/gallery/internal/model"
	"github.com/HarrySoteriou/gallery/internal/prompt"
)

// ErrSessionClosed is returned by every Service method after Close.
var ErrSessionClosed = errors.New("rag: session closed")

// ProgressFunc receives partial generations. See llm.PartialFunc.
type ProgressFunc = llm.PartialFunc

// Options configures a Service.
type Options struct {
	// Model is the language model every backend generates with. Required.
	Model llms.Model
	LLM   llm.Config

	Dependencies Dependencies

	// DisableRetrieval selects the base backend: no memory at all.
	DisableRetrieval bool

	// MaxChunks is the fallback retrieval depth; 0 means memstore.DefaultMaxChunks.
	MaxChunks int
	// MaxChunkSize bounds MemorizeText chunks; 0 means chunker.DefaultMaxChunkSize.
	MaxChunkSize int

	Logger logger.Logger
}

// Service is one model session. It owns the fallback store and, when the
// chain is available, the semantic memory.
type Service struct {
	mu     sync.RWMutex
	closed bool
	// clearMu is held shared by writes and exclusively by ClearContext, so a
	// clear never lands between a semantic write and its mirror.
	clearMu sync.RWMutex

	backend  Backend
	caps     Capabilities
	fallback *memstore.Store

	maxChunks    int
	maxChunkSize int
	log          logger.Logger
}

// NewService probes the primary chain and resolves the session's backend.
// Only a missing language model fails construction.
func NewService(ctx context.Context, opts Options) (*Service, error) {
	if opts.Model == nil {
		return nil, errors.New("rag: language model is required")
	}
	session, err := llm.NewSession(opts.Model, opts.LLM)
	if err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}

	s := &Service{
		fallback:     memstore.New(),
		maxChunks:    opts.MaxChunks,
		maxChunkSize: opts.MaxChunkSize,
		log:          logger.OrDefault(opts.Logger),
	}
	if s.maxChunks <= 0 {
		s.maxChunks = memstore.DefaultMaxChunks
	}
	if s.maxChunkSize <= 0 {
		s.maxChunkSize = chunker.DefaultMaxChunkSize
	}

	if opts.DisableRetrieval {
		s.backend = BaseBackend{Session: session}
		s.log.Info("Session ready", "backend", KindBase)
		return s, nil
	}

	caps, c := Probe(ctx, opts.Dependencies, session, s.log)
	s.caps = caps
	if c.Chain != nil {
		s.backend = ChainBackend{Chain: c.Chain, Memory: c.Memory, Session: session, Store: s.fallback}
	} else {
		if c.Memory != nil {
			if err := c.Memory.Close(); err != nil {
				s.log.Warn("Failed to close unused semantic memory", "error", err)
			}
		}
		s.backend = FallbackBackend{Session: session, Store: s.fallback}
	}
	s.log.Info("Session ready", "backend", s.backend.Kind())
	return s, nil
}

// Capabilities returns the probe result. It is zero for the base backend.
func (s *Service) Capabilities() Capabilities { return s.caps }

// Kind returns the backend variant chosen at construction.
func (s *Service) Kind() Kind { return s.backend.Kind() }

// ChunkText splits text with the chunker; maxChunkSize <= 0 uses the default.
func (s *Service) ChunkText(text string, maxChunkSize int) []string {
	return chunker.ChunkText(text, maxChunkSize)
}

// acquire holds the read lock for the duration of an operation so Close
// waits for in-flight calls.
func (s *Service) acquire() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrSessionClosed
	}
	return s.mu.RUnlock, nil
}

// Memorize stores chunks as one document. On the chain backend a failed
// semantic write is retried once against the fallback store; a successful
// one is mirrored there.
func (s *Service) Memorize(ctx context.Context, chunks []string) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	s.clearMu.RLock()
	defer s.clearMu.RUnlock()

	switch b := s.backend.(type) {
	case ChainBackend:
		if _, err := b.Memory.RecordBatchedMemoryItems(ctx, chunks); err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.log.Warn("Semantic memory write failed, using fallback store", "error", err)
			if _, ferr := b.Store.Memorize(ctx, chunks); ferr != nil {
				return fmt.Errorf("memorize: %w", errors.Join(err, ferr))
			}
			return nil
		}
		// The semantic write committed; finish the mirror even if ctx is
		// cancelled so both stores hold the same documents.
		if _, err := b.Store.Memorize(context.WithoutCancel(ctx), chunks); err != nil {
			s.log.Warn("Failed to mirror chunks into fallback store", "error", err)
		}
		return nil
	case FallbackBackend:
		if _, err := b.Store.Memorize(ctx, chunks); err != nil {
			return fmt.Errorf("memorize: %w", err)
		}
		return nil
	case BaseBackend:
		s.log.Debug("Retrieval disabled, dropping chunks", "chunks", len(chunks))
		return nil
	default:
		return fmt.Errorf("rag: unknown backend %T", s.backend)
	}
}

// MemorizeText chunks text and memorizes the result.
func (s *Service) MemorizeText(ctx context.Context, text string) error {
	return s.Memorize(ctx, chunker.ChunkText(text, s.maxChunkSize))
}

// Answer is a generated response and the chunks spliced into its prompt.
type Answer struct {
	Text    string        `json:"text"`
	Context []model.Match `json:"context"`
}

// GenerateResponse answers p through the session's backend, streaming
// partial text to progress.
func (s *Service) GenerateResponse(ctx context.Context, p string, progress ProgressFunc) (string, error) {
	a, err := s.Ask(ctx, p, progress)
	if err != nil {
		return "", err
	}
	return a.Text, nil
}

// Ask is GenerateResponse that also reports the retrieved context. A
// failing chain is retried once through the fallback path.
func (s *Service) Ask(ctx context.Context, p string, progress ProgressFunc) (*Answer, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	switch b := s.backend.(type) {
	case ChainBackend:
		resp, err := b.Chain.Invoke(ctx, chain.Request{Prompt: p}, progress)
		if err == nil {
			return &Answer{Text: resp.Text, Context: resp.Context}, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		s.log.Warn("Chain failed, retrying with fallback retrieval", "error", err)
		a, ferr := s.generateFallback(ctx, b.Session, b.Store, p, progress)
		if ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return a, nil
	case FallbackBackend:
		return s.generateFallback(ctx, b.Session, b.Store, p, progress)
	case BaseBackend:
		text, err := b.Session.Generate(ctx, p, progress)
		if err != nil {
			return nil, err
		}
		return &Answer{Text: text}, nil
	default:
		return nil, fmt.Errorf("rag: unknown backend %T", s.backend)
	}
}

func (s *Service) generateFallback(ctx context.Context, session *llm.Session, st *memstore.Store, p string, progress ProgressFunc) (*Answer, error) {
	matches := st.Search(p, s.maxChunks)
	s.log.Debug("Fallback retrieval", "chunks", len(matches))
	text, err := session.Generate(ctx, prompt.Augment(p, model.Texts(matches)), progress)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Context: matches}, nil
}

// ClearContext empties the semantic memory, if any, and the fallback store.
// The fallback store is cleared even when the semantic clear fails.
func (s *Service) ClearContext(ctx context.Context) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	s.clearMu.Lock()
	defer s.clearMu.Unlock()

	s.fallback.Clear()
	if b, ok := s.backend.(ChainBackend); ok {
		if err := b.Memory.Clear(ctx); err != nil {
			return fmt.Errorf("clear context: %w", err)
		}
	}
	return nil
}

// Close releases the session. It waits for in-flight calls; later calls
// return ErrSessionClosed. Closing twice is a no-op.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.fallback.Clear()
	if b, ok := s.backend.(ChainBackend); ok {
		if err := b.Memory.Close(); err != nil {
			return fmt.Errorf("close semantic memory: %w", err)
		}
	}
	return nil
}

// Documents lists what the session has memorized, oldest first. The
// fallback store holds every document on all retrieving backends.
func (s *Service) Documents() []model.Document {
	return s.fallback.Documents()
}

// Describe asks the session's model about images. It bypasses retrieval.
func (s *Service) Describe(ctx context.Context, p string, images []llm.Image) (string, error) {
	release, err := s.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	var session *llm.Session
	switch b := s.backend.(type) {
	case ChainBackend:
		session = b.Session
	case FallbackBackend:
		session = b.Session
	case BaseBackend:
		session = b.Session
	}
	if session == nil {
		return "", fmt.Errorf("rag: unknown backend %T", s.backend)
	}
	return session.Describe(ctx, p, images)
}
