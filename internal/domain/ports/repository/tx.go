package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a storage transaction and hands the
// transaction handle to fn as tx. Repositories accept that handle (or nil for
// the non-transactional path) and, when it is a transaction, lock the rows they
// read with SELECT ... FOR UPDATE.
//
// The concrete type of tx is infra-defined (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
