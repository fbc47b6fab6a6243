package main

import (
	"context"
	"os"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/provision"
	"github.com/lodthe/container-from-sqldump/internal/rehome"

	"github.com/aws/aws-sdk-go-v2/aws"
	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const DefaultConfigPath = "config.yaml"

const (
	PrettyLogFormat = "pretty"
	JSONLogFormat   = "json"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// WorkspaceRoot holds a directory per environment.
	WorkspaceRoot string `mapstructure:"workspace_root"`

	// HostAddress is where published ports are reachable. It is resolved automatically when empty.
	HostAddress string `mapstructure:"host_address"`

	TablePrefix   string `mapstructure:"table_prefix"`
	ActivePlugins string `mapstructure:"active_plugins"`

	CommandTimeout time.Duration `mapstructure:"command_timeout"`

	Database    Database    `mapstructure:"database"`
	Application Application `mapstructure:"app"`
	Admin       Admin       `mapstructure:"admin"`
	Content     Content     `mapstructure:"content"`

	AWS    AWS    `mapstructure:"aws"`
	Status Status `mapstructure:"status"`
}

type Database struct {
	Image        string `mapstructure:"image"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	RootPassword string `mapstructure:"root_password"`

	// Client is the SQL client binary inside the database image.
	Client string `mapstructure:"client"`

	ReadinessMarker string        `mapstructure:"readiness_marker"`
	Grace           time.Duration `mapstructure:"grace"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollAttempts    int           `mapstructure:"poll_attempts"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type Application struct {
	Image string `mapstructure:"image"`
	Port  int    `mapstructure:"port"`
	Theme string `mapstructure:"theme"`

	ReadinessMarker   string        `mapstructure:"readiness_marker"`
	ReadinessRequired bool          `mapstructure:"readiness_required"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollAttempts      int           `mapstructure:"poll_attempts"`
}

type Admin struct {
	Login    string `mapstructure:"login"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`

	// HashScheme is md5 or bcrypt.
	HashScheme string `mapstructure:"hash"`
}

type Content struct {
	Source  string `mapstructure:"source"`
	Symlink bool   `mapstructure:"symlink"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`

	// RunsTable enables the run history when set.
	RunsTable string `mapstructure:"runs_table"`
}

type Status struct {
	// Address enables the status server when set.
	Address string        `mapstructure:"address"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig reads the config file. A missing file is not an error, defaults are applied by validate.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	c := gconfig.NewWithOptions("container-from-sqldump",
		gconfig.ParseEnv,
		gconfig.Readonly,
		func(opts *gconfig.Options) {
			opts.DecoderConfig = &mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				WeaklyTypedInput: true,
				DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			}
		},
	)
	c.AddDriver(gyaml.Driver)

	cfg := new(Config)

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}

	err = c.LoadFiles(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	err = c.BindStruct("", cfg)
	if err != nil {
		return nil, errors.Wrap(err, "config binding failed")
	}

	return cfg, nil
}

// validate verifies the loaded config and sets default values for missed fields.
func (c *Config) validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogFormat {
	case "":
		c.LogFormat = PrettyLogFormat
	case PrettyLogFormat, JSONLogFormat:
	default:
		return errors.Errorf("unknown log format %s (supported: %s, %s)", c.LogFormat, PrettyLogFormat, JSONLogFormat)
	}

	if c.WorkspaceRoot == "" {
		c.WorkspaceRoot = "registered_containers"
	}
	if c.TablePrefix == "" {
		c.TablePrefix = rehome.DefaultPrefix
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 10 * time.Minute
	}

	db := &c.Database
	if db.Image == "" {
		db.Image = "mariadb:latest"
	}
	if db.Port == 0 {
		db.Port = 6603
	}
	if db.User == "" {
		db.User = "wordpress"
	}
	if db.Password == "" {
		db.Password = "wordpress"
	}
	if db.Name == "" {
		db.Name = "wordpress"
	}
	if db.RootPassword == "" {
		db.RootPassword = "root"
	}
	if db.Client == "" {
		db.Client = "mariadb"
	}
	if db.ReadinessMarker == "" {
		db.ReadinessMarker = "init process done. Ready for start up"
	}
	if db.Grace == 0 {
		db.Grace = 10 * time.Second
	}
	if db.PollInterval == 0 {
		db.PollInterval = 2 * time.Second
	}
	if db.PollAttempts == 0 {
		db.PollAttempts = 60
	}
	if db.ConnectTimeout == 0 {
		db.ConnectTimeout = 10 * time.Second
	}

	app := &c.Application
	if app.Image == "" {
		app.Image = "wordpress:4.6.1-php7.0-apache"
	}
	if app.Port == 0 {
		app.Port = 8080
	}
	if app.Theme == "" {
		app.Theme = "twentysixteen"
	}
	if app.ReadinessMarker == "" {
		app.ReadinessMarker = "resuming normal operations"
	}
	if app.PollInterval == 0 {
		app.PollInterval = 2 * time.Second
	}
	if app.PollAttempts == 0 {
		app.PollAttempts = 10
	}

	for name, port := range map[string]int{"database.port": db.Port, "app.port": app.Port} {
		if port < 1 || port > 65535 {
			return errors.Errorf("%s must be in [1, 65535], got %d", name, port)
		}
	}
	if db.Port == app.Port {
		return errors.New("database.port and app.port must differ")
	}
	if db.PollAttempts < 0 || app.PollAttempts < 0 {
		return errors.New("poll attempts cannot be negative")
	}

	if c.Admin.Login == "" {
		c.Admin.Login = "cuser"
	}
	if c.Admin.Email == "" {
		c.Admin.Email = "mail@example.com"
	}
	if c.Admin.Password == "" {
		c.Admin.Password = "password"
	}
	if c.Admin.HashScheme == "" {
		c.Admin.HashScheme = "md5"
	}
	if _, err := rehome.NewHasher(c.Admin.HashScheme); err != nil {
		return errors.Wrap(err, "invalid admin.hash")
	}

	if c.AWS.RunsTable != "" && c.AWS.Region == "" {
		return errors.New("aws.region is required when aws.runs_table is set")
	}

	if c.Status.Timeout == 0 {
		c.Status.Timeout = 10 * time.Second
	}

	return nil
}

// environment describes the run of the named environment.
func (c *Config) environment(name, dumpPath, hostAddress string) provision.Environment {
	return provision.Environment{
		Name:     name,
		DumpPath: dumpPath,
		Credentials: provision.Credentials{
			User:         c.Database.User,
			Password:     c.Database.Password,
			Database:     c.Database.Name,
			RootPassword: c.Database.RootPassword,
		},
		DatabaseImage:    c.Database.Image,
		DatabasePort:     c.Database.Port,
		ApplicationImage: c.Application.Image,
		ApplicationPort:  c.Application.Port,
		PrefixHint:       c.TablePrefix,
		ContentSource:    c.Content.Source,
		SymlinkContent:   c.Content.Symlink,
		Admin: rehome.Account{
			Login:    c.Admin.Login,
			Email:    c.Admin.Email,
			Password: c.Admin.Password,
		},
		Plugins:     provision.ParsePluginList(c.ActivePlugins),
		Theme:       c.Application.Theme,
		HostAddress: hostAddress,
	}
}

func (c *Config) orchestratorConfig() provision.Config {
	return provision.Config{
		DatabaseMarker: c.Database.ReadinessMarker,
		DatabaseGrace:  c.Database.Grace,
		DatabasePoll: provision.Poll{
			Interval: c.Database.PollInterval,
			Attempts: c.Database.PollAttempts,
		},
		DatabaseClient:    c.Database.Client,
		ApplicationMarker: c.Application.ReadinessMarker,
		ApplicationPoll: provision.Poll{
			Interval: c.Application.PollInterval,
			Attempts: c.Application.PollAttempts,
		},
		ApplicationReadinessRequired: c.Application.ReadinessRequired,
		CommandTimeout:               c.CommandTimeout,
		ConnectTimeout:               c.Database.ConnectTimeout,
	}
}

func (c *Config) Retrieve(_ context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		Source:          "local config",
	}, nil
}
