// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in the store and task packages.
package postgres
