package rehome

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// PrefixMarker is the table name suffix used to recognize the prefix.
const PrefixMarker = "users"

// DefaultPrefix is the prefix of a stock WordPress installation.
const DefaultPrefix = "wp_"

// DiscoverPrefix scans table names for the first one containing PrefixMarker
// and returns everything before the marker. When no table matches, fallback is returned.
//
// Other tables (options, posts, usermeta) are not checked here: a mismatch surfaces
// as an SQL error in the step that uses them.
func DiscoverPrefix(ctx context.Context, lister TableLister, fallback string) (string, error) {
	tables, err := lister.ListTables(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to list tables")
	}

	return prefixFromTables(tables, fallback), nil
}

func prefixFromTables(tables []string, fallback string) string {
	for _, name := range tables {
		if idx := strings.Index(name, PrefixMarker); idx >= 0 {
			return name[:idx]
		}
	}

	return fallback
}
