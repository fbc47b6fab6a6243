// Package rehome rewrites a restored WordPress database so that the site believes
// it is served from a new host.
package rehome

import (
	"context"

	"github.com/lodthe/container-from-sqldump/internal/sitedb"

	"github.com/pkg/errors"
)

var (
	ErrOriginNotFound = errors.New("origin url not found")
	ErrAdminNotFound  = errors.New("admin seeding produced no identifiable row")
)

// TableLister lists the tables of the restored schema.
type TableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// Store is the subset of the site database used by the rehoming steps.
type Store interface {
	TableLister

	InsertUser(ctx context.Context, prefix string, u sitedb.User) (int64, error)
	FindUserIDByEmail(ctx context.Context, prefix, email string) (int64, bool, error)
	InsertUserMeta(ctx context.Context, prefix string, m sitedb.UserMeta) error

	GetOptions(ctx context.Context, prefix string, names ...string) ([]sitedb.Option, error)
	SetOptions(ctx context.Context, prefix, value string, names ...string) (int64, error)
	ReplaceInPosts(ctx context.Context, prefix string, column sitedb.PostColumn, old, new string) (int64, error)
}
