package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and hands the
// transaction handle to repositories through the Tx argument.
//
// Repositories MUST accept a nil Tx (non-transactional path). When a real
// transaction handle is passed, reads that precede a mutation take a row lock
// (SELECT ... FOR UPDATE), which is what serializes wallet and payment changes.
//
// USAGE
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
// p, err := payments.FindByID(ctx, tx, id)
// ...
// return err
// })
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
