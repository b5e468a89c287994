package mcast

import (
	"github.com/hycast/hycast/internal/product"
	"github.com/hycast/hycast/internal/store"
)

// StoreRcvr adapts a ContentRcvr onto a *store.Store: a ProdInfo datagram
// attaches (or creates) an entry, and a chunk datagram is handed straight
// to AddLatentChunk, which creates an entry from the chunk's own metadata
// when the product hasn't been seen yet — the late-joiner tolerance
// spec.md §4.6 requires.
type StoreRcvr struct {
	Store *store.Store
}

func (r StoreRcvr) RecvProdInfo(info product.ProdInfo) {
	r.Store.AddProdInfo(info)
}

func (r StoreRcvr) RecvChunk(chunk *product.LatentChunk) {
	_, _, _ = r.Store.AddLatentChunk(chunk)
}
