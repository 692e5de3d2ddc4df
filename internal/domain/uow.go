package domain

import "context"

// UnitOfWork runs a function inside one database transaction.
// Repositories called with the context passed to fn take part in it.
type UnitOfWork interface {
	// Do executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
