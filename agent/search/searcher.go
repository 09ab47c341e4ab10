package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// Semantic answers similarity queries from the vector index. When a catalog
// is attached every hit is re-read from it, so stale or removed products in
// the index never reach a reply.
type Semantic struct {
	embedder Embedder
	index    VectorIndex
	catalog  contractx.Catalog
}

var _ contractx.Searcher = (*Semantic)(nil)

type SemanticOption func(*Semantic)

func WithCatalog(catalog contractx.Catalog) SemanticOption {
	return func(s *Semantic) {
		s.catalog = catalog
	}
}

func NewSemantic(embedder Embedder, index VectorIndex, opts ...SemanticOption) (*Semantic, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if index == nil {
		return nil, errors.New("vector index is required")
	}
	s := &Semantic{embedder: embedder, index: index}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Semantic) Search(ctx context.Context, query string, k int) ([]contractx.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	hits, err := s.index.Query(ctx, vectors[0], k)
	if err != nil {
		return nil, err
	}

	out := make([]contractx.Product, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, h := range hits {
		p := h.Product
		if _, dup := seen[p.ID]; dup {
			continue
		}
		if s.catalog != nil {
			fresh, err := s.catalog.GetByID(ctx, p.ID)
			if errors.Is(err, contractx.ErrProductNotFound) {
				log.Debug().Str("product_id", p.ID).Msg("indexed product missing from catalog")
				continue
			}
			if err != nil {
				return nil, err
			}
			p = fresh
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
		if len(out) == k {
			break
		}
	}
	return out, nil
}
