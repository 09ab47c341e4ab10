package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	contractx "github.com/tanpawarit/chative-commerce/agent/contract"
)

const (
	defaultListLimit = 100
	maxIDAttempts    = 3
)

var ErrOrderNotFound = errors.New("order not found")

// Config is loaded with the DATABASE prefix.
type Config struct {
	DSN          string        `required:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
	Timeout      time.Duration `default:"5s"`
}

type Repository struct {
	db    *bun.DB
	newID func() string
	now   func() time.Time
}

var _ contractx.OrderRepository = (*Repository)(nil)

type Option func(*Repository)

func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(r *Repository) {
		if fn != nil {
			r.now = fn
		}
	}
}

// Open connects to Postgres through pgdriver.
func Open(cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.Timeout > 0 {
		opts = append(opts, pgdriver.WithTimeout(cfg.Timeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func NewRepository(db *bun.DB, opts ...Option) *Repository {
	r := &Repository{
		db:    db,
		newID: NewOrderID,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// NewOrderID returns "ORD-" and eight upper-case hex characters.
func NewOrderID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(hex[:8])
}

// CreateOrder writes the order and all of its items in one transaction. A
// colliding order id is retried with a fresh one.
func (r *Repository) CreateOrder(ctx context.Context, in contractx.CreateOrderInput) (contractx.OrderReceipt, error) {
	if err := checkInput(in); err != nil {
		return contractx.OrderReceipt{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		order := newOrder(r.newID(), in, r.now())
		err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
			if _, err := tx.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
			return nil
		})
		if err == nil {
			log.Info().
				Str("order_id", order.OrderID).
				Int("items", len(order.Items)).
				Float64("total", order.TotalAmount).
				Msg("order created")
			return order.Receipt(), nil
		}
		if !isUniqueViolation(err) {
			return contractx.OrderReceipt{}, err
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("order_id", order.OrderID).Msg("order id collision")
	}
	return contractx.OrderReceipt{}, lastErr
}

func (r *Repository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	order := new(Order)
	err := r.db.NewSelect().
		Model(order).
		Relation("Items").
		Where("o.order_id = ?", strings.ToUpper(strings.TrimSpace(orderID))).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersByEmail returns the customer's orders, newest first.
func (r *Repository) ListOrdersByEmail(ctx context.Context, email string) ([]*Order, error) {
	var out []*Order
	err := r.db.NewSelect().
		Model(&out).
		Relation("Items").
		Where("o.customer_email = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecent returns up to limit orders, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []*Order
	err := r.db.NewSelect().
		Model(&out).
		Relation("Items").
		Order("o.created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	res, err := r.db.NewUpdate().
		Model((*Order)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", r.now()).
		Where("order_id = ?", strings.ToUpper(strings.TrimSpace(orderID))).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return nil
}

func checkInput(in contractx.CreateOrderInput) error {
	if len(in.Items) == 0 {
		return contractx.ErrEmptyCart
	}
	for _, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return fmt.Errorf("%w: %+v", contractx.ErrInvalidItems, it)
		}
	}
	c := in.Customer
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" || strings.TrimSpace(c.ShippingAddress) == "" {
		return contractx.ErrCustomerIncomplete
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
