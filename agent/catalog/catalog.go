package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

const indexKey = "products"

var ErrEmptyCatalog = errors.New("catalog has no products")

type Config struct {
	Path string `default:"data/products.json"`
	// RefreshInterval re-reads the file after it elapses so stock changes
	// show up without a restart. Zero keeps the first load forever.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" split_words:"true" default:"5m"`
}

// Catalog is the read-only product source backed by a JSON file.
type Catalog struct {
	path   string
	cache  *cache.Cache
	mu     sync.Mutex
	last   *index
	loadFn func() ([]contractx.Product, error)
}

type index struct {
	products []contractx.Product
	byID     map[string]int
	byName   map[string]int
}

func New(cfg Config) (*Catalog, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("catalog path is required")
	}
	c := newCatalog(cfg.RefreshInterval, func() ([]contractx.Product, error) { return readFile(path) })
	c.path = path
	if _, err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromProducts builds a catalog over a fixed product list.
func FromProducts(products []contractx.Product) (*Catalog, error) {
	fixed := append([]contractx.Product(nil), products...)
	c := newCatalog(0, func() ([]contractx.Product, error) { return fixed, nil })
	if _, err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

func newCatalog(refresh time.Duration, load func() ([]contractx.Product, error)) *Catalog {
	ttl := refresh
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Catalog{
		cache:  cache.New(ttl, 0),
		loadFn: load,
	}
}

func (c *Catalog) GetByID(_ context.Context, id string) (contractx.Product, error) {
	idx, err := c.index()
	if err != nil {
		return contractx.Product{}, err
	}
	i, ok := idx.byID[normalizeID(id)]
	if !ok {
		return contractx.Product{}, fmt.Errorf("%w: %s", contractx.ErrProductNotFound, strings.TrimSpace(id))
	}
	return idx.products[i], nil
}

// GetByIDOrExactName matches a product id first, then a full product name
// ignoring case.
func (c *Catalog) GetByIDOrExactName(ctx context.Context, text string) (contractx.Product, error) {
	if p, err := c.GetByID(ctx, text); err == nil {
		return p, nil
	} else if !errors.Is(err, contractx.ErrProductNotFound) {
		return contractx.Product{}, err
	}

	idx, err := c.index()
	if err != nil {
		return contractx.Product{}, err
	}
	i, ok := idx.byName[normalizeName(text)]
	if !ok {
		return contractx.Product{}, fmt.Errorf("%w: %s", contractx.ErrProductNotFound, strings.TrimSpace(text))
	}
	return idx.products[i], nil
}

func (c *Catalog) IsAvailable(ctx context.Context, id string) (bool, error) {
	p, err := c.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return p.StockStatus.Available(), nil
}

// All returns every product sorted by id.
func (c *Catalog) All(_ context.Context) ([]contractx.Product, error) {
	idx, err := c.index()
	if err != nil {
		return nil, err
	}
	out := append([]contractx.Product(nil), idx.products...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) index() (*index, error) {
	if x, ok := c.cache.Get(indexKey); ok {
		return x.(*index), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if x, ok := c.cache.Get(indexKey); ok {
		return x.(*index), nil
	}

	products, err := c.loadFn()
	if err == nil {
		var idx *index
		idx, err = buildIndex(products)
		if err == nil {
			c.last = idx
			c.cache.Set(indexKey, idx, cache.DefaultExpiration)
			log.Debug().Str("path", c.path).Int("products", len(products)).Msg("catalog loaded")
			return idx, nil
		}
	}

	if c.last == nil {
		return nil, err
	}
	// Serve the previous load until the file is readable again.
	log.Warn().Err(err).Str("path", c.path).Msg("catalog reload failed, keeping previous products")
	c.cache.Set(indexKey, c.last, cache.DefaultExpiration)
	return c.last, nil
}

func buildIndex(products []contractx.Product) (*index, error) {
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}
	idx := &index{
		products: make([]contractx.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
		byName:   make(map[string]int, len(products)),
	}
	for _, p := range products {
		p.ID = normalizeID(p.ID)
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("%w: product without id or name", contractx.ErrValidation)
		}
		if _, dup := idx.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %s", contractx.ErrValidation, p.ID)
		}
		switch p.StockStatus {
		case contractx.StockIn, contractx.StockLow, contractx.StockOut:
		default:
			return nil, fmt.Errorf("%w: product %s has stock status %q", contractx.ErrValidation, p.ID, p.StockStatus)
		}
		idx.byID[p.ID] = len(idx.products)
		if _, taken := idx.byName[normalizeName(p.Name)]; !taken {
			idx.byName[normalizeName(p.Name)] = len(idx.products)
		}
		idx.products = append(idx.products, p)
	}
	return idx, nil
}

func readFile(path string) ([]contractx.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var products []contractx.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return products, nil
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
