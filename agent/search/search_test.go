package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

type fakeEmbedder struct {
	dims  int
	err   error
	calls [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

type fakeIndex struct {
	hits       []Hit
	upserts    [][]Point
	recreated  int
	lastLimit  int
	queryError error
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	f.lastLimit = limit
	return f.hits, f.queryError
}

func (f *fakeIndex) Upsert(ctx context.Context, points []Point) error {
	f.upserts = append(f.upserts, points)
	return nil
}

func (f *fakeIndex) Recreate(ctx context.Context, dimensions int) error {
	f.recreated = dimensions
	return nil
}

type fakeCatalog struct {
	products map[string]contractx.Product
}

func (f *fakeCatalog) GetByID(ctx context.Context, id string) (contractx.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return contractx.Product{}, contractx.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalog) GetByIDOrExactName(ctx context.Context, text string) (contractx.Product, error) {
	return f.GetByID(ctx, text)
}

func (f *fakeCatalog) IsAvailable(ctx context.Context, id string) (bool, error) {
	p, err := f.GetByID(ctx, id)
	return p.StockStatus.Available(), err
}

func hit(id, name string, stock contractx.StockStatus) Hit {
	return Hit{Product: contractx.Product{ID: id, Name: name, StockStatus: stock}}
}

func TestSemanticSearchUsesCatalogAsTruth(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{hits: []Hit{
		hit("TECH-008", "Sony WH-1000XM5", contractx.StockIn),
		hit("TECH-008", "Sony WH-1000XM5", contractx.StockIn),
		hit("TECH-099", "Removed Headphones", contractx.StockIn),
		hit("TECH-010", "Bose QuietComfort Ultra", contractx.StockIn),
	}}
	catalog := &fakeCatalog{products: map[string]contractx.Product{
		"TECH-008": {ID: "TECH-008", Name: "Sony WH-1000XM5", StockStatus: contractx.StockIn},
		"TECH-010": {ID: "TECH-010", Name: "Bose QuietComfort Ultra", StockStatus: contractx.StockOut},
	}}
	s, err := NewSemantic(&fakeEmbedder{dims: 4}, index, WithCatalog(catalog))
	if err != nil {
		t.Fatalf("NewSemantic() error = %v", err)
	}

	got, err := s.Search(context.Background(), "noise cancelling headphones", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d products, want 2: %+v", len(got), got)
	}
	if got[1].ID != "TECH-010" || got[1].StockStatus != contractx.StockOut {
		t.Fatalf("expected catalog stock status, got %+v", got[1])
	}
	if index.lastLimit != 5 {
		t.Fatalf("limit = %d, want 5", index.lastLimit)
	}
}

func TestSemanticSearchEmptyQuery(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{dims: 4}
	s, err := NewSemantic(emb, &fakeIndex{})
	if err != nil {
		t.Fatalf("NewSemantic() error = %v", err)
	}
	got, err := s.Search(context.Background(), "   ", 5)
	if err != nil || got != nil {
		t.Fatalf("Search() = %+v, %v", got, err)
	}
	if len(emb.calls) != 0 {
		t.Fatal("empty query must not be embedded")
	}
}

func TestSemanticSearchPropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("embedding service down")
	s, err := NewSemantic(&fakeEmbedder{err: boom}, &fakeIndex{})
	if err != nil {
		t.Fatalf("NewSemantic() error = %v", err)
	}
	if _, err := s.Search(context.Background(), "laptops", 5); !errors.Is(err, boom) {
		t.Fatalf("expected embedder error, got %v", err)
	}
}

func TestRebuildBatchesAndUsesDocumentText(t *testing.T) {
	t.Parallel()

	products := make([]contractx.Product, 70)
	for i := range products {
		products[i] = contractx.Product{ID: fmt.Sprintf("P-%03d", i), Name: "Item", Description: "Useful thing"}
	}
	emb := &fakeEmbedder{dims: 8}
	index := &fakeIndex{}

	n, err := Rebuild(context.Background(), emb, index, 8, products)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if n != 70 {
		t.Fatalf("indexed %d, want 70", n)
	}
	if index.recreated != 8 {
		t.Fatalf("recreated with %d dims, want 8", index.recreated)
	}
	if len(index.upserts) != 2 || len(index.upserts[0]) != defaultBatchSize {
		t.Fatalf("unexpected batches: %d", len(index.upserts))
	}
	if emb.calls[0][0] != "Item. Useful thing" {
		t.Fatalf("document text = %q", emb.calls[0][0])
	}
}

func TestRebuildRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := Rebuild(context.Background(), &fakeEmbedder{dims: 3}, &fakeIndex{}, 8, []contractx.Product{{ID: "A-1", Name: "a"}})
	if err == nil || !strings.Contains(err.Error(), "dimensions") {
		t.Fatalf("expected dimension error, got %v", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	in := contractx.Product{ID: "TECH-008", Name: "Sony WH-1000XM5", Description: "Headphones", Price: 399.99, Category: "audio", StockStatus: contractx.StockLow}
	got, ok := productFromPayload(qdrant.NewValueMap(productPayload(in)))
	if !ok || got != in {
		t.Fatalf("productFromPayload() = %+v, %v", got, ok)
	}
	if _, ok := productFromPayload(map[string]*qdrant.Value{}); ok {
		t.Fatal("payload without product id must be skipped")
	}
}

func TestPointIDIsStable(t *testing.T) {
	t.Parallel()

	if PointID("tech-007") != PointID(" TECH-007") {
		t.Fatal("point id must ignore case and whitespace")
	}
	if PointID("TECH-007") == PointID("TECH-008") {
		t.Fatal("point ids must differ per product")
	}
}

func TestQdrantConfig(t *testing.T) {
	t.Parallel()

	cfg, err := qdrantConfig("http://localhost:6334", "")
	if err != nil {
		t.Fatalf("qdrantConfig() error = %v", err)
	}
	if cfg.Host != "localhost" || cfg.Port != 6334 || cfg.UseTLS {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	cfg, err = qdrantConfig("cluster.qdrant.io", "key")
	if err != nil {
		t.Fatalf("qdrantConfig() error = %v", err)
	}
	if !cfg.UseTLS || cfg.Port != 6334 || cfg.APIKey != "key" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if _, err := qdrantConfig("", ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{QdrantURL: "http://localhost:6334", Collection: "products", EmbeddingAPIKey: "k", EmbeddingDimensions: 1536}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	cfg.EmbeddingAPIKey = ""
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
