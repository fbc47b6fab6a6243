// Package sitedb provides typed access to the tables of a restored WordPress schema.
//
// Table names are built from a prefix discovered at runtime, so they are validated and quoted
// instead of being bound as parameters. All values are bound.
package sitedb

import (
	"context"
	"database/sql"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

var ErrInvalidIdentifier = errors.New("invalid identifier")

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_$]+$`)

// Config describes how to reach the database from the host running the tool.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	ConnectTimeout time.Duration
}

// DSN builds a go-sql-driver/mysql data source name.
func (c Config) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.Timeout = c.ConnectTimeout

	return cfg.FormatDSN()
}

// DB is a connection to the restored site database.
// Statements are executed one by one without transactions.
type DB struct {
	db      *sqlx.DB
	dialect dialect
	logger  zerolog.Logger
}

// Connect opens a MySQL connection and verifies it.
func Connect(ctx context.Context, logger zerolog.Logger, cfg Config) (*DB, error) {
	return Open(ctx, logger, DriverMySQL, cfg.DSN())
}

// Open opens a connection using the given driver (mysql or sqlite3) and verifies it.
func Open(ctx context.Context, logger zerolog.Logger, driver, dsn string) (*DB, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, errors.Errorf("unsupported driver %s", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to the database")
	}

	return &DB{
		db:      db,
		dialect: d,
		logger:  logger.With().Str("driver", driver).Logger(),
	}, nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, logger zerolog.Logger) (*DB, error) {
	d, ok := dialects[db.DriverName()]
	if !ok {
		return nil, errors.Errorf("unsupported driver %s", db.DriverName())
	}

	return &DB{db: db, dialect: d, logger: logger}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// ListTables returns names of all tables of the current database.
func (d *DB) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := d.db.SelectContext(ctx, &tables, d.dialect.listTables)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tables")
	}

	return tables, nil
}

// InsertUser inserts a row into {prefix}users unless a user with the same login exists.
// WordPress does not declare user_login unique, so the check is a part of the statement.
// It returns the ID of the inserted row, or 0 when nothing was inserted.
func (d *DB) InsertUser(ctx context.Context, prefix string, u User) (int64, error) {
	table, err := tableName(prefix, "users")
	if err != nil {
		return 0, err
	}

	query := d.dialect.insertIgnore + " INTO " + table + ` (
		user_login, user_pass, user_nicename, user_email, user_url,
		user_registered, user_activation_key, user_status, display_name
	) SELECT
		:user_login, :user_pass, :user_nicename, :user_email, :user_url,
		:user_registered, :user_activation_key, :user_status, :display_name
	` + d.dialect.fromDual + ` WHERE NOT EXISTS (
		SELECT 1 FROM ` + table + ` WHERE user_login = :user_login
	)`

	d.logger.Debug().Str("table", table).Str("user_login", u.Login).Msg("inserting user")

	res, err := d.db.NamedExecContext(ctx, query, u)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to insert into %s", table)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get affected rows")
	}
	// sqlite reports the previous rowid when nothing was inserted.
	if affected == 0 {
		return 0, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get inserted id")
	}

	return id, nil
}

// FindUserIDByEmail returns the ID of the oldest user with the given email.
// The second value is false when no such user exists.
func (d *DB) FindUserIDByEmail(ctx context.Context, prefix, email string) (int64, bool, error) {
	table, err := tableName(prefix, "users")
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = d.db.GetContext(ctx, &id, "SELECT ID FROM "+table+" WHERE user_email = ? ORDER BY ID LIMIT 1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to select from %s", table)
	}

	return id, true, nil
}

// InsertUserMeta inserts a row into {prefix}usermeta.
func (d *DB) InsertUserMeta(ctx context.Context, prefix string, m UserMeta) error {
	table, err := tableName(prefix, "usermeta")
	if err != nil {
		return err
	}

	d.logger.Debug().Str("table", table).Int64("user_id", m.UserID).Str("meta_key", m.Key).Msg("inserting user meta")

	_, err = d.db.NamedExecContext(ctx, "INSERT INTO "+table+" (user_id, meta_key, meta_value) VALUES (:user_id, :meta_key, :meta_value)", m)
	if err != nil {
		return errors.Wrapf(err, "failed to insert into %s", table)
	}

	return nil
}

// GetOptions returns {prefix}options rows with the given names.
func (d *DB) GetOptions(ctx context.Context, prefix string, names ...string) ([]Option, error) {
	table, err := tableName(prefix, "options")
	if err != nil {
		return nil, err
	}

	query, args, err := sqlx.In("SELECT option_name, option_value FROM "+table+" WHERE option_name IN (?)", names)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build query")
	}

	var options []Option
	err = d.db.SelectContext(ctx, &options, d.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select from %s", table)
	}

	return options, nil
}

// SetOptions sets option_value of all {prefix}options rows with the given names.
func (d *DB) SetOptions(ctx context.Context, prefix, value string, names ...string) (int64, error) {
	table, err := tableName(prefix, "options")
	if err != nil {
		return 0, err
	}

	query, args, err := sqlx.In("UPDATE "+table+" SET option_value = ? WHERE option_name IN (?)", value, names)
	if err != nil {
		return 0, errors.Wrap(err, "failed to build query")
	}

	d.logger.Debug().Str("table", table).Strs("options", names).Str("value", value).Msg("updating options")

	res, err := d.db.ExecContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to update %s", table)
	}

	return res.RowsAffected()
}

// ReplaceInPosts replaces every occurrence of old with new in the given column of {prefix}posts.
// The replacement is a literal substring one.
func (d *DB) ReplaceInPosts(ctx context.Context, prefix string, column PostColumn, old, new string) (int64, error) {
	table, err := tableName(prefix, "posts")
	if err != nil {
		return 0, err
	}

	if !column.valid() {
		return 0, errors.Wrapf(ErrInvalidIdentifier, "column %q", column)
	}

	col := quote(string(column))
	query := "UPDATE " + table + " SET " + col + " = REPLACE(" + col + ", ?, ?)"

	d.logger.Debug().Str("table", table).Str("column", string(column)).Str("old", old).Str("new", new).Msg("replacing in posts")

	res, err := d.db.ExecContext(ctx, query, old, new)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to update %s.%s", table, column)
	}

	return res.RowsAffected()
}

func tableName(prefix, suffix string) (string, error) {
	name := prefix + suffix
	if !identifierRe.MatchString(name) {
		return "", errors.Wrapf(ErrInvalidIdentifier, "table %q", name)
	}

	return quote(name), nil
}

func quote(identifier string) string {
	return "`" + identifier + "`"
}
