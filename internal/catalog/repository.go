package catalog

import (
	"context"
	"errors"
)

var (
	// ErrExists is returned by Create when the identifier is already taken.
	ErrExists = errors.New("part already exists")
	// ErrNotFound is returned by UpdateFields and Delete for unknown parts.
	ErrNotFound = errors.New("part not found")
)

// Repository is the catalog data-access contract. Identifiers are matched
// case-insensitively through NormalizeKey.
type Repository interface {
	Create(ctx context.Context, part Part) error
	// FindByIdentifier returns (nil, nil) when the part does not exist.
	FindByIdentifier(ctx context.Context, identifier string) (*Part, error)
	SearchByIdentifierSubstring(ctx context.Context, query string) ([]Part, error)
	List(ctx context.Context) ([]Part, error)
	UpdateFields(ctx context.Context, identifier string, patch Patch) (*Part, error)
	Delete(ctx context.Context, identifier string) error
	Exists(ctx context.Context, identifier string) (bool, error)
}
