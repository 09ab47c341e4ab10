package orders

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Migrate creates the order tables when they are missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*Order)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create orders table: %w", err)
		}
		if _, err := tx.NewCreateTable().
			Model((*OrderItem)(nil)).
			IfNotExists().
			ForeignKey(`("order_id") REFERENCES "orders" ("order_id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return fmt.Errorf("create order_items table: %w", err)
		}
		if _, err := tx.NewCreateIndex().
			Model((*Order)(nil)).
			Index("orders_customer_email_idx").
			Column("customer_email").
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create orders email index: %w", err)
		}
		if _, err := tx.NewCreateIndex().
			Model((*OrderItem)(nil)).
			Index("order_items_order_id_idx").
			Column("order_id").
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create order items index: %w", err)
		}
		return nil
	})
}

// Drop removes the order tables.
func Drop(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*OrderItem)(nil), (*Order)(nil)} {
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
