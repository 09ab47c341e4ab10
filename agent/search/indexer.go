package search

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

const defaultBatchSize = 64

// DocumentText is what gets embedded for a product.
func DocumentText(p contractx.Product) string {
	return p.Name + ". " + p.Description
}

// Rebuild recreates the collection and stores every product.
func Rebuild(ctx context.Context, embedder Embedder, index VectorIndex, dimensions int, products []contractx.Product) (int, error) {
	if err := index.Recreate(ctx, dimensions); err != nil {
		return 0, err
	}

	indexed := 0
	for start := 0; start < len(products); start += defaultBatchSize {
		end := min(start+defaultBatchSize, len(products))
		batch := products[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = DocumentText(p)
		}
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("embed products %d-%d: %w", start, end, err)
		}

		points := make([]Point, len(batch))
		for i, p := range batch {
			if len(vectors[i]) != dimensions {
				return indexed, fmt.Errorf("product %s: embedding has %d dimensions, want %d", p.ID, len(vectors[i]), dimensions)
			}
			points[i] = Point{Product: p, Vector: vectors[i]}
		}
		if err := index.Upsert(ctx, points); err != nil {
			return indexed, err
		}
		indexed += len(points)
		log.Info().Int("indexed", indexed).Int("total", len(products)).Msg("products indexed")
	}
	return indexed, nil
}
