package sitedb

import "database/sql"

// User is a row of {prefix}users. ID is generated by the database.
type User struct {
	Login         string `db:"user_login"`
	PasswordHash  string `db:"user_pass"`
	Nicename      string `db:"user_nicename"`
	Email         string `db:"user_email"`
	URL           string `db:"user_url"`
	Registered    string `db:"user_registered"`
	ActivationKey string `db:"user_activation_key"`
	Status        int    `db:"user_status"`
	DisplayName   string `db:"display_name"`
}

// UserMeta is a row of {prefix}usermeta.
type UserMeta struct {
	UserID int64  `db:"user_id"`
	Key    string `db:"meta_key"`
	Value  string `db:"meta_value"`
}

// Option is a row of {prefix}options.
type Option struct {
	Name  string         `db:"option_name"`
	Value sql.NullString `db:"option_value"`
}

// PostColumn is a text column of {prefix}posts that may embed the site URL.
type PostColumn string

const (
	PostGUID    PostColumn = "guid"
	PostContent PostColumn = "post_content"
)

func (c PostColumn) valid() bool {
	return c == PostGUID || c == PostContent
}

type dialect struct {
	listTables   string
	insertIgnore string
	// fromDual lets a SELECT without tables carry a WHERE clause.
	fromDual string
}

var dialects = map[string]dialect{
	DriverMySQL: {
		listTables:   "SHOW TABLES",
		insertIgnore: "INSERT IGNORE",
		fromDual:     "FROM DUAL",
	},
	DriverSQLite: {
		listTables:   "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name",
		insertIgnore: "INSERT OR IGNORE",
	},
}
