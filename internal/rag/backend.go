package rag

import (
	"github.com/HarrySoteriou/gallery/internal/chain"
	"github.com/HarrySoteriou/gallery/internal/llm"
	"github.com/HarrySoteriou/gallery/internal/memstore"
	"github.com/HarrySoteriou/gallery/internal/store"
)

// Kind names a backend variant.
type Kind string

const (
	KindBase     Kind = "base"
	KindFallback Kind = "fallback"
	KindChain    Kind = "chain"
)

// Backend is one of BaseBackend, FallbackBackend or ChainBackend. It is
// chosen once per session and matched with a type switch.
type Backend interface {
	Kind() Kind
	sealed()
}

// BaseBackend generates without retrieval.
type BaseBackend struct {
	Session *llm.Session
}

// FallbackBackend retrieves by keyword overlap from the in-process store.
type FallbackBackend struct {
	Session *llm.Session
	Store   *memstore.Store
}

// ChainBackend serves requests through the embedding-backed chain and
// keeps the in-process store as its safety net.
type ChainBackend struct {
	Chain   *chain.Chain
	Memory  store.Memory
	Session *llm.Session
	Store   *memstore.Store
}

func (BaseBackend) Kind() Kind     { return KindBase }
func (FallbackBackend) Kind() Kind { return KindFallback }
func (ChainBackend) Kind() Kind    { return KindChain }

func (BaseBackend) sealed()     {}
func (FallbackBackend) sealed() {}
func (ChainBackend) sealed()    {}
