package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the infra-defined transaction handle (pgx.Tx for Postgres). Repositories
// accept NoTX for the non-transactional path.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and passes the
// handle on so every repository call in fn shares it.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
