package database

import (
	"context"
	"database/sql"
	"sync"

	"gorm.io/gorm"
)

type txKey struct{}

type txState struct {
	tx *gorm.DB

	mu          sync.Mutex
	afterCommit []func(ctx context.Context)
	onceKeys    map[string]struct{}
}

// Transactor runs a function inside a database transaction. The transaction
// travels in the context so repositories called from fn join it through Conn.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	WithinTransactionOpts(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor backed by gorm
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.WithinTransactionOpts(ctx, nil, fn)
}

// WithinTransactionOpts joins an existing transaction when ctx already
// carries one; opts only apply to the outermost call. Hooks registered with
// AfterCommit run once the outermost transaction commits.
func (t *gormTransactor) WithinTransactionOpts(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	state := &txState{}
	run := func(tx *gorm.DB) error {
		state.tx = tx
		return fn(context.WithValue(ctx, txKey{}, state))
	}

	var err error
	if opts == nil {
		err = t.db.WithContext(ctx).Transaction(run)
	} else {
		err = t.db.WithContext(ctx).Transaction(run, opts)
	}
	if err != nil {
		return err
	}

	state.runAfterCommit(ctx)
	return nil
}

func (s *txState) runAfterCommit(ctx context.Context) {
	s.mu.Lock()
	hooks := s.afterCommit
	s.afterCommit = nil
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(ctx)
	}
}

// AfterCommit defers fn until the transaction carried by ctx commits. Without
// a transaction fn runs immediately. Hooks are dropped on rollback.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		fn(ctx)
		return
	}
	state.mu.Lock()
	state.afterCommit = append(state.afterCommit, fn)
	state.mu.Unlock()
}

// AfterCommitOnce is AfterCommit deduplicated by key within one transaction
func AfterCommitOnce(ctx context.Context, key string, fn func(ctx context.Context)) {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		fn(ctx)
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if _, seen := state.onceKeys[key]; seen {
		return
	}
	if state.onceKeys == nil {
		state.onceKeys = make(map[string]struct{})
	}
	state.onceKeys[key] = struct{}{}
	state.afterCommit = append(state.afterCommit, fn)
}

// InTransaction reports whether ctx carries a transaction
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// Conn returns the transaction bound to ctx, or db scoped to ctx
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return db.WithContext(ctx)
}
