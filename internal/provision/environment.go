package provision

import (
	"strings"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/rehome"
)

const (
	databaseContainerPort    = 3306
	applicationContainerPort = 80

	// Mount points inside the containers.
	dumpMount         = "/dump"
	sqlScriptsMount   = "/sql_scripts"
	setupScriptsMount = "/setup_scripts"
	contentMount      = "/var/www/html/wp-content"
)

// Credentials of the MySQL-compatible database.
type Credentials struct {
	User         string
	Password     string
	Database     string
	RootPassword string
}

// Environment describes a single provisioning run. It is built once from
// the operator input and never modified afterwards.
type Environment struct {
	// Name identifies the environment: it is used for container names and the workspace directory.
	Name string

	DumpPath string

	Credentials Credentials

	DatabaseImage string
	DatabasePort  int

	ApplicationImage string
	ApplicationPort  int

	// PrefixHint is used when the restored schema has no users table.
	PrefixHint string

	// ContentSource is an optional local directory placed at wp-content.
	ContentSource  string
	SymlinkContent bool

	Admin   rehome.Account
	Plugins []string
	Theme   string

	// HostAddress is where published container ports are reachable from this host.
	HostAddress string
}

func (e Environment) DatabaseContainer() string {
	return e.Name + "_mysql"
}

func (e Environment) ApplicationContainer() string {
	return e.Name + "_wordpress"
}

func (e Environment) target() rehome.Target {
	return rehome.Target{
		Host:    e.HostAddress,
		Port:    e.ApplicationPort,
		Plugins: e.Plugins,
		Theme:   e.Theme,
	}
}

// Poll is a readiness polling budget.
type Poll struct {
	Interval time.Duration
	Attempts int
}

// Config tunes the orchestrator.
type Config struct {
	// DatabaseMarker is looked for in the database container logs.
	DatabaseMarker string
	DatabaseGrace  time.Duration
	DatabasePoll   Poll

	// DatabaseClient is the SQL client binary inside the database image.
	DatabaseClient string

	ApplicationMarker string
	ApplicationPoll   Poll

	// ApplicationReadinessRequired makes a missing application marker fatal.
	ApplicationReadinessRequired bool

	// CommandTimeout limits every command executed inside the containers.
	CommandTimeout time.Duration

	ConnectTimeout time.Duration
}

// ParsePluginList splits a comma-separated list of plugin paths.
// Entries are kept exactly as typed, only empty ones are dropped, so an empty string yields an empty list.
func ParsePluginList(raw string) []string {
	plugins := make([]string, 0)
	for _, p := range strings.Split(raw, ",") {
		if p != "" {
			plugins = append(plugins, p)
		}
	}

	return plugins
}
