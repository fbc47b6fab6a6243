// Package sitedbtest builds in-memory SQLite databases shaped like a WordPress schema.
package sitedbtest

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lodthe/container-from-sqldump/internal/sitedb"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

const schema = `
CREATE TABLE {p}users (
	ID INTEGER PRIMARY KEY AUTOINCREMENT,
	user_login TEXT NOT NULL DEFAULT '',
	user_pass TEXT NOT NULL DEFAULT '',
	user_nicename TEXT NOT NULL DEFAULT '',
	user_email TEXT NOT NULL DEFAULT '',
	user_url TEXT NOT NULL DEFAULT '',
	user_registered TEXT NOT NULL DEFAULT '0000-00-00 00:00:00',
	user_activation_key TEXT NOT NULL DEFAULT '',
	user_status INTEGER NOT NULL DEFAULT 0,
	display_name TEXT NOT NULL DEFAULT ''
);
CREATE INDEX {p}user_login_key ON {p}users (user_login);
CREATE INDEX {p}user_email ON {p}users (user_email);
CREATE TABLE {p}usermeta (
	umeta_id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL DEFAULT 0,
	meta_key TEXT,
	meta_value TEXT
);
CREATE TABLE {p}options (
	option_id INTEGER PRIMARY KEY AUTOINCREMENT,
	option_name TEXT NOT NULL DEFAULT '' UNIQUE,
	option_value TEXT,
	autoload TEXT NOT NULL DEFAULT 'yes'
);
CREATE TABLE {p}posts (
	ID INTEGER PRIMARY KEY AUTOINCREMENT,
	post_title TEXT NOT NULL DEFAULT '',
	post_content TEXT NOT NULL DEFAULT '',
	guid TEXT NOT NULL DEFAULT ''
);
`

var dbCounter atomic.Int64

// Post is a simplified row of {prefix}posts.
type Post struct {
	ID      int64  `db:"ID"`
	Title   string `db:"post_title"`
	Content string `db:"post_content"`
	GUID    string `db:"guid"`
}

// Fixture is an isolated in-memory database.
type Fixture struct {
	t      testing.TB
	SQL    *sqlx.DB
	DB     *sitedb.DB
	Prefix string
}

// New creates an empty WordPress-like schema with the given table prefix.
func New(t testing.TB, prefix string) *Fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:sitedbtest%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := sqlx.Connect(sitedb.DriverSQLite, dsn)
	require.NoError(t, err)

	// A single connection keeps the in-memory database alive and avoids shared cache locks.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range strings.Split(strings.ReplaceAll(schema, "{p}", prefix), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}

		_, err = db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	site, err := sitedb.New(db, zlog.Logger.Level(zerolog.ErrorLevel))
	require.NoError(t, err)

	return &Fixture{t: t, SQL: db, DB: site, Prefix: prefix}
}

// WithOption inserts an option row.
func (f *Fixture) WithOption(name, value string) *Fixture {
	f.t.Helper()

	_, err := f.SQL.Exec("INSERT INTO "+f.Prefix+"options (option_name, option_value) VALUES (?, ?)", name, value)
	require.NoError(f.t, err)

	return f
}

// WithPost inserts a post row.
func (f *Fixture) WithPost(title, content, guid string) *Fixture {
	f.t.Helper()

	_, err := f.SQL.Exec("INSERT INTO "+f.Prefix+"posts (post_title, post_content, guid) VALUES (?, ?, ?)", title, content, guid)
	require.NoError(f.t, err)

	return f
}

// WithUser inserts a user row with the given login and email.
func (f *Fixture) WithUser(login, email string) *Fixture {
	f.t.Helper()

	_, err := f.SQL.Exec("INSERT INTO "+f.Prefix+"users (user_login, user_email) VALUES (?, ?)", login, email)
	require.NoError(f.t, err)

	return f
}

// Option returns the value of the option, the second value is false for NULL or missing rows.
func (f *Fixture) Option(name string) (string, bool) {
	f.t.Helper()

	var value sql.NullString
	err := f.SQL.Get(&value, "SELECT option_value FROM "+f.Prefix+"options WHERE option_name = ?", name)
	if err == sql.ErrNoRows {
		return "", false
	}
	require.NoError(f.t, err)

	return value.String, value.Valid
}

// Posts returns all posts ordered by ID.
func (f *Fixture) Posts() []Post {
	f.t.Helper()

	var posts []Post
	require.NoError(f.t, f.SQL.Select(&posts, "SELECT ID, post_title, post_content, guid FROM "+f.Prefix+"posts ORDER BY ID"))

	return posts
}

// UserMeta returns meta_key -> meta_value of the user.
func (f *Fixture) UserMeta(userID int64) map[string]string {
	f.t.Helper()

	var rows []sitedb.UserMeta
	require.NoError(f.t, f.SQL.Select(&rows, "SELECT user_id, meta_key, meta_value FROM "+f.Prefix+"usermeta WHERE user_id = ?", userID))

	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}

	return meta
}

// CountUsers returns the number of users with the given login.
func (f *Fixture) CountUsers(login string) int {
	f.t.Helper()

	var n int
	require.NoError(f.t, f.SQL.Get(&n, "SELECT COUNT(*) FROM "+f.Prefix+"users WHERE user_login = ?", login))

	return n
}
