package store

import (
	"context"
	"errors"

	"github.com/Priya8975/forge-storefront/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// EventFilter narrows ListWebhookEvents. Zero values mean "any".
type EventFilter struct {
	Event  string
	FormID string
	Limit  int
}

// Store is the full persistence surface the server needs. Both MongoStore
// and PostgresStore implement it.
type Store interface {
	CreateWebhookEvent(ctx context.Context, ev *domain.WebhookEvent) error
	CreateSubmission(ctx context.Context, sub *domain.Submission) error
	GetWebhookEvent(ctx context.Context, id string) (*domain.WebhookEvent, error)
	ListWebhookEvents(ctx context.Context, f EventFilter) ([]domain.WebhookEvent, error)

	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)

	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	UpsertProduct(ctx context.Context, p *domain.Product) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

const defaultEventLimit = 50

func eventLimit(n int) int {
	if n <= 0 {
		return defaultEventLimit
	}
	if n > 500 {
		return 500
	}
	return n
}
