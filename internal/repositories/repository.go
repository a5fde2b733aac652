package repositories

import "context"

// Repository aggregates all repository interfaces behind one handle.
type Repository interface {
	// Assignment domain
	Assignment() AssignmentRepository

	// Submission domain
	Submission() SubmissionRepository

	// User domain (read-only; identity is owned by Casdoor)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
