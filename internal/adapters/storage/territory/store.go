package territory

import (
	"context"
	"errors"

	domain "territorios/internal/domain/territory"
)

// Store errors
var (
	ErrNotFound       = errors.New("territory not found")
	ErrHistoryRewrite = errors.New("history is append-only")
)

// Store persists territories and their assignment history.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Territory, error)
	Save(ctx context.Context, value domain.Territory) error
	List(ctx context.Context) ([]domain.Territory, error)
	Count(ctx context.Context) (int, error)
}

var _ Store = (*SQLiteStore)(nil)
