// Package store defines the persistence interfaces and shared database
// helpers used by the service and task layers. Implementations live under
// internal/platform.
package store
