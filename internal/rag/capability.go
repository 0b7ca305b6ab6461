package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/HarrySoteriou/gallery/internal/chain"
	"github.com/HarrySoteriou/gallery/internal/embedding"
	"github.com/HarrySoteriou/gallery/internal/logger"
	"github.com/HarrySoteriou/gallery/internal/store"
)

var errDependencyUnavailable = errors.New("dependency unavailable")

// Availability records whether one component of the primary chain could
// be constructed, and why not.
type Availability struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Capabilities is the outcome of probing the primary chain's dependencies.
type Capabilities struct {
	Embedder       Availability `json:"embedder"`
	SemanticMemory Availability `json:"semantic_memory"`
	Chain          Availability `json:"chain"`
}

// Dependencies constructs the primary chain's parts. Either constructor
// may be nil, which marks that part unavailable.
type Dependencies struct {
	NewEmbedder func() (embedding.Embedder, error)
	NewMemory   func(embedding.Embedder) (store.Memory, error)
	Chain       chain.Config
}

// Components holds whatever the probe managed to build. Fields of
// unavailable parts are nil.
type Components struct {
	Embedder embedding.Embedder
	Memory   store.Memory
	Chain    *chain.Chain
}

// Probe constructs embedder, semantic memory and chain in that order. A
// failed step marks itself and every step depending on it unavailable; it
// never fails the caller.
func Probe(ctx context.Context, deps Dependencies, gen chain.Generator, log logger.Logger) (Capabilities, Components) {
	log = logger.OrDefault(log)
	var (
		caps Capabilities
		c    Components
	)

	caps.Embedder = guard(ctx, log, "embedder", func() error {
		if deps.NewEmbedder == nil {
			return errors.New("no embedder configured")
		}
		emb, err := deps.NewEmbedder()
		if err != nil {
			return err
		}
		if emb == nil {
			return errors.New("embedder constructor returned nil")
		}
		c.Embedder = emb
		return nil
	})

	caps.SemanticMemory = guard(ctx, log, "semantic_memory", func() error {
		if c.Embedder == nil {
			return fmt.Errorf("embedder: %w", errDependencyUnavailable)
		}
		if deps.NewMemory == nil {
			return errors.New("no semantic memory configured")
		}
		mem, err := deps.NewMemory(c.Embedder)
		if err != nil {
			return err
		}
		if mem == nil {
			return errors.New("semantic memory constructor returned nil")
		}
		c.Memory = mem
		return nil
	})

	caps.Chain = guard(ctx, log, "chain", func() error {
		if c.Memory == nil {
			return fmt.Errorf("semantic memory: %w", errDependencyUnavailable)
		}
		ch, err := chain.New(c.Memory, gen, deps.Chain)
		if err != nil {
			return err
		}
		c.Chain = ch
		return nil
	})

	return caps, c
}

// guard runs one construction step, converting errors and panics into an
// unavailable Availability.
func guard(ctx context.Context, log logger.Logger, step string, fn func() error) (a Availability) {
	defer func() {
		if r := recover(); r != nil {
			a = Availability{Reason: fmt.Sprintf("panic: %v", r)}
			log.Warn("Capability probe panicked", "step", step, "panic", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return Availability{Reason: err.Error()}
	}
	if err := fn(); err != nil {
		log.Warn("Capability unavailable", "step", step, "reason", err)
		return Availability{Reason: err.Error()}
	}
	return Availability{Available: true}
}
