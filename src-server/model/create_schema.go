package model

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

func CreateSchema(ctx context.Context, db *bun.DB) error {
	if err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.
			NewCreateTable().
			Model((*Event)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
		// range scans on start_time back every translated query
		if _, err := tx.
			NewCreateIndex().
			Model((*Event)(nil)).
			Index("idx_start_time").
			Column("start_time").
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("CreateSchema: %w", err)
	}

	return nil
}
