package main

import (
	"github.com/spf13/cobra"
)

// stringFlag overrides a config value when it is set on the command line.
type stringFlag struct {
	name  string
	usage string
	field func(c *Config) *string
}

var stringFlags = []stringFlag{
	{"mysql-user", "MySQL user", func(c *Config) *string { return &c.Database.User }},
	{"mysql-password", "MySQL password", func(c *Config) *string { return &c.Database.Password }},
	{"mysql-database", "MySQL database name", func(c *Config) *string { return &c.Database.Name }},
	{"mysql-root-password", "MySQL root password", func(c *Config) *string { return &c.Database.RootPassword }},
	{"wp-db-table-prefix", "table prefix used when the dump has no users table", func(c *Config) *string { return &c.TablePrefix }},
	{"plugin-repo", "local directory placed at wp-content", func(c *Config) *string { return &c.Content.Source }},
	{"wp-known-user-email", "email of the injected admin", func(c *Config) *string { return &c.Admin.Email }},
	{"wp-known-user-password", "password of the injected admin", func(c *Config) *string { return &c.Admin.Password }},
	{"wp-known-user-name", "login of the injected admin", func(c *Config) *string { return &c.Admin.Login }},
	{"wp-active-plugins", "comma-separated list of active plugins (wp-content must contain them)", func(c *Config) *string { return &c.ActivePlugins }},
	{"host-address", "address where published ports are reachable", func(c *Config) *string { return &c.HostAddress }},
	{"log-level", "log level", func(c *Config) *string { return &c.LogLevel }},
	{"log-format", "log format (pretty or json)", func(c *Config) *string { return &c.LogFormat }},
}

type overrides struct {
	strings map[string]*string

	symlinkContent    bool
	readinessRequired bool
}

func registerFlags(cmd *cobra.Command) *overrides {
	o := &overrides{strings: make(map[string]*string, len(stringFlags))}

	flags := cmd.Flags()
	for _, f := range stringFlags {
		o.strings[f.name] = flags.String(f.name, "", f.usage)
	}

	flags.BoolVar(&o.symlinkContent, "symlink-content", false, "symlink the plugin repo instead of copying it")
	flags.BoolVar(&o.readinessRequired, "app-readiness-required", false, "fail when the application readiness marker is not seen")

	return o
}

// apply copies explicitly set flags into the config.
func (o *overrides) apply(cmd *cobra.Command, c *Config) {
	flags := cmd.Flags()
	for _, f := range stringFlags {
		if flags.Changed(f.name) {
			*f.field(c) = *o.strings[f.name]
		}
	}

	if flags.Changed("symlink-content") {
		c.Content.Symlink = o.symlinkContent
	}
	if flags.Changed("app-readiness-required") {
		c.Application.ReadinessRequired = o.readinessRequired
	}
}
