package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

// Hit is one nearest-neighbour match.
type Hit struct {
	Product contractx.Product
	Score   float32
}

// Point is one product document ready to be stored.
type Point struct {
	Product contractx.Product
	Vector  []float32
}

type VectorIndex interface {
	Query(ctx context.Context, vector []float32, limit int) ([]Hit, error)
	Upsert(ctx context.Context, points []Point) error
	Recreate(ctx context.Context, dimensions int) error
}

// QdrantIndex stores one point per product, keyed by a UUID derived from the
// product id so re-indexing overwrites instead of duplicating.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

var _ VectorIndex = (*QdrantIndex)(nil)

func NewQdrantIndex(cfg Config) (*QdrantIndex, error) {
	qcfg, err := qdrantConfig(cfg.QdrantURL, cfg.QdrantAPIKey)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantIndex{client: client, collection: strings.TrimSpace(cfg.Collection)}, nil
}

func qdrantConfig(rawURL, apiKey string) (*qdrant.Config, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: strings.TrimSpace(apiKey),
		UseTLS: u.Scheme == "https",
	}, nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	lim := uint64(limit)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		product, ok := productFromPayload(p.GetPayload())
		if !ok {
			continue
		}
		hits = append(hits, Hit{Product: product, Score: p.GetScore()})
	}
	return hits, nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(p.Product.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(productPayload(p.Product)),
		})
	}

	wait := true
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         structs,
	}); err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Recreate drops the collection if present and creates it empty.
func (q *QdrantIndex) Recreate(ctx context.Context, dimensions int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant collection check failed: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("qdrant delete collection failed: %w", err)
		}
	}
	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

var pointNamespace = uuid.MustParse("3f1c9a52-5d0e-4c4b-9a57-2f6f2b1d8e61")

func PointID(productID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(strings.ToUpper(strings.TrimSpace(productID)))).String()
}

func productPayload(p contractx.Product) map[string]any {
	return map[string]any{
		"product_id":   p.ID,
		"name":         p.Name,
		"description":  p.Description,
		"price":        p.Price,
		"category":     p.Category,
		"stock_status": string(p.StockStatus),
	}
}

func productFromPayload(payload map[string]*qdrant.Value) (contractx.Product, bool) {
	var p contractx.Product
	for k, v := range payload {
		switch k {
		case "product_id":
			p.ID = v.GetStringValue()
		case "name":
			p.Name = v.GetStringValue()
		case "description":
			p.Description = v.GetStringValue()
		case "category":
			p.Category = v.GetStringValue()
		case "stock_status":
			p.StockStatus = contractx.StockStatus(v.GetStringValue())
		case "price":
			switch val := v.GetKind().(type) {
			case *qdrant.Value_DoubleValue:
				p.Price = val.DoubleValue
			case *qdrant.Value_IntegerValue:
				p.Price = float64(val.IntegerValue)
			}
		}
	}
	return p, p.ID != ""
}
