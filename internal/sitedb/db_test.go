package sitedb_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/sitedb"
	"github.com/lodthe/container-from-sqldump/internal/sitedb/sitedbtest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sitedb.DB, sqlmock.Sqlmock) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	db, err := sitedb.New(sqlx.NewDb(raw, sitedb.DriverMySQL), zlog.Logger)
	require.NoError(t, err)

	return db, mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := sitedb.Config{
		Host:           "203.0.113.5",
		Port:           6603,
		User:           "wordpress",
		Password:       "p@ss:word",
		Database:       "wordpress",
		ConnectTimeout: 5 * time.Second,
	}

	assert.Equal(t, "wordpress:p@ss:word@tcp(203.0.113.5:6603)/wordpress?timeout=5s", cfg.DSN())
}

func TestDB_ListTables_MySQL(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SHOW TABLES").WillReturnRows(
		sqlmock.NewRows([]string{"Tables_in_wordpress"}).AddRow("wp_options").AddRow("wp_users"),
	)

	tables, err := db.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"wp_options", "wp_users"}, tables)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_InsertUser_MySQLUsesInsertIgnore(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO `wp_users`")).
		WithArgs("cuser", "hash", "cuser", "mail@example.com", "", "2011-06-07 00:00:00", "", 0, "cuser", "cuser").
		WillReturnResult(sqlmock.NewResult(0, 0))

	id, err := db.InsertUser(context.Background(), "wp_", sitedb.User{
		Login:        "cuser",
		PasswordHash: "hash",
		Nicename:     "cuser",
		Email:        "mail@example.com",
		Registered:   "2011-06-07 00:00:00",
		DisplayName:  "cuser",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_SetOptions_MySQL(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `wp_options` SET option_value = ? WHERE option_name IN (?, ?)")).
		WithArgs("http://203.0.113.5:8080", "home", "siteurl").
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := db.SetOptions(context.Background(), "wp_", "http://203.0.113.5:8080", "home", "siteurl")
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_ReplaceInPosts_MySQL(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `wp_posts` SET `guid` = REPLACE(`guid`, ?, ?)")).
		WithArgs("http://old.example", "http://203.0.113.5:8080").
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := db.ReplaceInPosts(context.Background(), "wp_", sitedb.PostGUID, "http://old.example", "http://203.0.113.5:8080")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_InvalidIdentifiers(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	_, err := db.InsertUser(ctx, "wp_`; DROP TABLE x; --", sitedb.User{})
	assert.True(t, errors.Is(err, sitedb.ErrInvalidIdentifier))

	_, err = db.ReplaceInPosts(ctx, "wp_", sitedb.PostColumn("post_title"), "a", "b")
	assert.True(t, errors.Is(err, sitedb.ErrInvalidIdentifier))

	_, err = db.GetOptions(ctx, "wp prefix ", "home")
	assert.True(t, errors.Is(err, sitedb.ErrInvalidIdentifier))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_SQLite(t *testing.T) {
	f := sitedbtest.New(t, "wp_").
		WithOption("siteurl", "http://old.example").
		WithOption("home", "http://old.example/blog").
		WithPost("Hello", `<a href="http://old.example/a">a</a> and http://old.example`, "http://old.example/?p=1")
	ctx := context.Background()

	tables, err := f.DB.ListTables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"wp_options", "wp_posts", "wp_usermeta", "wp_users", "sqlite_sequence"}, tables)

	options, err := f.DB.GetOptions(ctx, "wp_", "home", "siteurl")
	require.NoError(t, err)
	assert.Len(t, options, 2)

	inserted, err := f.DB.InsertUser(ctx, "wp_", sitedb.User{Login: "cuser", Email: "mail@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)

	id, found, err := f.DB.FindUserIDByEmail(ctx, "wp_", "mail@example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, inserted, id)

	_, found, err = f.DB.FindUserIDByEmail(ctx, "wp_", "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, found)

	inserted, err = f.DB.InsertUser(ctx, "wp_", sitedb.User{Login: "cuser", Email: "other@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted, "existing login must be skipped")
	assert.Equal(t, 1, f.CountUsers("cuser"))

	inserted, err = f.DB.InsertUser(ctx, "wp_", sitedb.User{Login: "second", Email: "mail@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	id, _, err = f.DB.FindUserIDByEmail(ctx, "wp_", "mail@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id, "the oldest row is returned")

	require.NoError(t, f.DB.InsertUserMeta(ctx, "wp_", sitedb.UserMeta{UserID: id, Key: "wp_user_level", Value: "10"}))
	assert.Equal(t, map[string]string{"wp_user_level": "10"}, f.UserMeta(id))

	_, err = f.DB.ReplaceInPosts(ctx, "wp_", sitedb.PostContent, "http://old.example", "http://new.example")
	require.NoError(t, err)

	posts := f.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, `<a href="http://new.example/a">a</a> and http://new.example`, posts[0].Content)
	assert.Equal(t, "http://old.example/?p=1", posts[0].GUID)
}
