// Package postgres provides the PostgreSQL implementation of
// store.StatusStore, together with the embedded goose migrations that
// create its schema. Conditional status writes lock the row inside a
// transaction, so concurrent workers settle on the furthest status.
package postgres
