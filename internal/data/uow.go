package data

import (
	"context"

	"clipstash/internal/domain"

	"entgo.io/ent/dialect"
	"github.com/go-kratos/kratos/v2/log"
)

// Compile-time interface check
var _ domain.UnitOfWork = (*unitOfWork)(nil)

type txKey struct{}

// txContext is the transaction carried in a context together with the work
// that has to wait until it is committed.
type txContext struct {
	tx          dialect.Tx
	afterCommit []func(ctx context.Context)
}

// unitOfWork implements domain.UnitOfWork on top of the ent SQL driver.
type unitOfWork struct {
	data *Data
	log  *log.Helper
}

// NewUnitOfWork creates a new UnitOfWork.
func NewUnitOfWork(data *Data, logger log.Logger) domain.UnitOfWork {
	return &unitOfWork{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Do executes the function within a database transaction.
// A call made while a transaction is already in ctx joins it.
func (u *unitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := u.data.db.Tx(ctx)
	if err != nil {
		return err
	}

	// Store tx in context for repositories to use
	tc := &txContext{tx: tx}
	txCtx := context.WithValue(ctx, txKey{}, tc)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			u.log.WithContext(ctx).Errorf("rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, hook := range tc.afterCommit {
		hook(ctx)
	}
	return nil
}

// TxFromContext retrieves the transaction from context.
func TxFromContext(ctx context.Context) dialect.Tx {
	if tc, ok := ctx.Value(txKey{}).(*txContext); ok {
		return tc.tx
	}
	return nil
}

// afterCommit runs hook once the transaction in ctx has committed. Outside
// a transaction it runs immediately. A rolled back transaction drops it.
func afterCommit(ctx context.Context, hook func(ctx context.Context)) {
	if tc, ok := ctx.Value(txKey{}).(*txContext); ok {
		tc.afterCommit = append(tc.afterCommit, hook)
		return
	}
	hook(ctx)
}
