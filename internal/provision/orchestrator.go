// Package provision drives a database and an application container from a SQL dump
// to a rehomed, running site.
package provision

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/dockerengine"
	"github.com/lodthe/container-from-sqldump/internal/gateway"
	"github.com/lodthe/container-from-sqldump/internal/metrics"
	"github.com/lodthe/container-from-sqldump/internal/readiness"
	"github.com/lodthe/container-from-sqldump/internal/rehome"
	"github.com/lodthe/container-from-sqldump/internal/sitedb"
	"github.com/lodthe/container-from-sqldump/internal/workspace"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrDatabaseNotReady    = errors.New("database did not become ready")
	ErrApplicationNotReady = errors.New("application did not become ready")
)

const (
	roleDatabase    = "database"
	roleApplication = "application"

	// Positional parameters keep SQL and paths away from shell parsing:
	// $1 is the client binary, the rest are statement, database or script arguments.
	execStatement = `exec "$1" -uroot -p"$MYSQL_ROOT_PASSWORD" -e "$2"`
	execScript    = `exec "$1" -uroot -p"$MYSQL_ROOT_PASSWORD" "$2" < "$3"`
)

// ContainerEngine manages the named containers of a run.
type ContainerEngine interface {
	RemoveContainer(ctx context.Context, name string) error
	RunContainer(ctx context.Context, spec dockerengine.ContainerSpec) (string, error)
	Logs(ctx context.Context, name string) (string, error)
	Gateway(containerName string) gateway.Gateway
}

// Site is a connection to the restored database.
type Site interface {
	rehome.Store
	Close() error
}

type Connector func(ctx context.Context, cfg sitedb.Config) (Site, error)

// Workspace holds the host directories mounted into the containers.
type Workspace interface {
	Prepare(dumpPath string, setupScripts map[string][]byte) error
	MaterializeContent(source string, symlink bool) error

	DumpDir() string
	SQLScriptsDir() string
	SetupScriptsDir() string
	ContentDir() string
}

// Recorder persists the progress of a run.
type Recorder interface {
	Record(ctx context.Context, report Report) error
}

type Deps struct {
	Engine    ContainerEngine
	Connect   Connector
	Workspace Workspace
	Hasher    rehome.PasswordHasher

	// Recorder is optional.
	Recorder Recorder
}

// Orchestrator owns the lifecycle of a single run. Steps are executed strictly
// one after another, the first fatal failure stops the run without any cleanup.
type Orchestrator struct {
	logger zerolog.Logger
	env    Environment
	cfg    Config
	deps   Deps

	machine *Machine

	mu     sync.RWMutex
	report Report
}

func NewOrchestrator(logger zerolog.Logger, runID string, env Environment, cfg Config, deps Deps) *Orchestrator {
	now := time.Now()

	return &Orchestrator{
		logger:  logger.With().Str("run_id", runID).Str("environment", env.Name).Logger(),
		env:     env,
		cfg:     cfg,
		deps:    deps,
		machine: NewMachine(),
		report: Report{
			RunID:                runID,
			Environment:          env.Name,
			State:                Created,
			DatabaseContainer:    env.DatabaseContainer(),
			ApplicationContainer: env.ApplicationContainer(),
			DatabaseHost:         env.HostAddress,
			DatabasePort:         env.DatabasePort,
			DatabaseUser:         env.Credentials.User,
			DatabaseName:         env.Credentials.Database,
			StartedAt:            now,
			UpdatedAt:            now,
		},
	}
}

// Report returns a copy of the current run report. It is safe to call during Run.
func (o *Orchestrator) Report() Report {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.report
}

// Run executes the whole lifecycle. The returned report reflects the last reached state
// and is not nil even when an error is returned.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	o.logger.Info().
		Str("database_container", o.env.DatabaseContainer()).
		Str("application_container", o.env.ApplicationContainer()).
		Msg("provisioning started")
	o.record(ctx)

	err := o.step(metrics.StepPrepareWorkspace, func() error {
		return o.prepareWorkspace()
	})
	if err != nil {
		return o.fail(ctx, err)
	}

	if o.env.ContentSource != "" {
		err = o.step(metrics.StepMaterializeContent, func() error {
			return o.materializeContent()
		})
		if err != nil {
			return o.fail(ctx, err)
		}
	}

	err = o.step(metrics.StepStartDatabase, func() error {
		return o.startDatabase(ctx)
	})
	if err = o.advance(ctx, DatabaseStarting, err); err != nil {
		return o.fail(ctx, err)
	}

	err = o.step(metrics.StepAwaitDatabase, func() error {
		return o.awaitDatabase(ctx)
	})
	if err = o.advance(ctx, DatabaseReady, err); err != nil {
		return o.fail(ctx, err)
	}

	err = o.step(metrics.StepLoadDump, func() error {
		return o.loadDump(ctx)
	})
	if err = o.advance(ctx, DumpLoaded, err); err != nil {
		return o.fail(ctx, err)
	}

	site, err := o.deps.Connect(ctx, sitedb.Config{
		Host:           o.env.HostAddress,
		Port:           o.env.DatabasePort,
		User:           o.env.Credentials.User,
		Password:       o.env.Credentials.Password,
		Database:       o.env.Credentials.Database,
		ConnectTimeout: o.cfg.ConnectTimeout,
	})
	if err != nil {
		return o.fail(ctx, errors.Wrap(err, "failed to connect to the restored database"))
	}
	defer func() {
		if closeErr := site.Close(); closeErr != nil {
			o.logger.Warn().Err(closeErr).Msg("failed to close the database connection")
		}
	}()

	fallback := o.env.PrefixHint
	if fallback == "" {
		fallback = rehome.DefaultPrefix
	}

	var prefix string
	err = o.step(metrics.StepResolvePrefix, func() (err error) {
		prefix, err = rehome.DiscoverPrefix(ctx, site, fallback)
		return err
	})
	if err = o.advance(ctx, PrefixResolved, err); err != nil {
		return o.fail(ctx, err)
	}
	o.update(func(r *Report) { r.Prefix = prefix })
	o.logger.Info().Str("prefix", prefix).Msg("table prefix resolved")

	var adminID int64
	err = o.step(metrics.StepSeedAdmin, func() (err error) {
		adminID, err = rehome.SeedAdmin(ctx, site, o.deps.Hasher, prefix, o.env.Admin)
		return err
	})
	if err == nil {
		o.update(func(r *Report) { r.AdminID = adminID })
		o.logger.Info().Int64("admin_id", adminID).Str("login", o.env.Admin.Login).Msg("known admin seeded")
	}
	if err = o.advance(ctx, AdminSeeded, err); err != nil {
		return o.fail(ctx, err)
	}

	var result *rehome.Result
	err = o.step(metrics.StepRehome, func() (err error) {
		result, err = rehome.NewEngine(o.logger, site, prefix).Rehome(ctx, o.env.target())
		return err
	})
	if err == nil {
		o.update(func(r *Report) {
			r.OriginURL = result.OriginURL
			r.SiteURL = result.SiteURL
			r.GUIDsRewritten = result.GUIDsRewritten
			r.ContentsRewritten = result.ContentsRewritten
		})
	}
	if err = o.advance(ctx, ConfigurationRehomed, err); err != nil {
		return o.fail(ctx, err)
	}

	err = o.step(metrics.StepStartApplication, func() error {
		return o.startApplication(ctx, prefix)
	})
	if err = o.advance(ctx, ApplicationStarting, err); err != nil {
		return o.fail(ctx, err)
	}

	var confirmed bool
	_ = o.step(metrics.StepAwaitApplication, func() error {
		confirmed = o.awaitApplication(ctx)
		if !confirmed {
			return ErrApplicationNotReady
		}

		return nil
	})
	if !confirmed {
		if o.cfg.ApplicationReadinessRequired {
			return o.fail(ctx, ErrApplicationNotReady)
		}

		o.logger.Warn().Msg("application readiness marker not found, the container is running anyway")
	}
	o.update(func(r *Report) { r.ApplicationConfirmed = confirmed })

	if err = o.advance(ctx, ApplicationReady, nil); err != nil {
		return o.fail(ctx, err)
	}

	report := o.Report()
	o.logger.Info().
		Str("site_url", report.SiteURL).
		Bool("confirmed", report.ApplicationConfirmed).
		Dur("elapsed_ms", time.Since(report.StartedAt)).
		Msg("provisioning finished")

	return &report, nil
}

func (o *Orchestrator) prepareWorkspace() error {
	err := o.deps.Workspace.Prepare(o.env.DumpPath, map[string][]byte{
		rehome.SetupScriptName: rehome.SetupScript(),
	})

	return errors.Wrap(err, "failed to prepare workspace")
}

// materializeContent must finish before the application starts: content is bind mounted at launch.
func (o *Orchestrator) materializeContent() error {
	err := o.deps.Workspace.MaterializeContent(o.env.ContentSource, o.env.SymlinkContent)
	if errors.Is(err, workspace.ErrRemoteContent) {
		o.logger.Warn().Str("source", o.env.ContentSource).Msg("remote content repositories are not supported, skipping")
		return nil
	}

	return errors.Wrap(err, "failed to materialize content")
}

func (o *Orchestrator) startDatabase(ctx context.Context) error {
	name := o.env.DatabaseContainer()
	if err := o.deps.Engine.RemoveContainer(ctx, name); err != nil {
		return err
	}

	creds := o.env.Credentials
	ws := o.deps.Workspace

	id, err := o.deps.Engine.RunContainer(ctx, dockerengine.ContainerSpec{
		Name:  name,
		Image: o.env.DatabaseImage,
		Env: []string{
			"MYSQL_ROOT_PASSWORD=" + creds.RootPassword,
			"MYSQL_USER=" + creds.User,
			"MYSQL_PASSWORD=" + creds.Password,
			"MYSQL_DATABASE=" + creds.Database,
		},
		Cmd:    []string{"--bind-address=*"},
		Labels: dockerengine.CreateContainerLabels(o.Report().RunID, o.env.Name, roleDatabase),
		Ports: []dockerengine.PortMapping{
			{HostPort: o.env.DatabasePort, ContainerPort: databaseContainerPort},
		},
		Volumes: []dockerengine.Volume{
			{Source: ws.SQLScriptsDir(), Target: sqlScriptsMount},
			{Source: ws.DumpDir(), Target: dumpMount},
			{Source: ws.SetupScriptsDir(), Target: setupScriptsMount},
		},
		RestartAlways: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to start the database container")
	}

	o.logger.Debug().Str("container_id", id).Msg("database container started")

	return nil
}

// awaitDatabase waits for the boot marker in the logs and for the server to answer a query:
// the server restarts once more right after the marker is printed.
func (o *Orchestrator) awaitDatabase(ctx context.Context) error {
	if err := sleep(ctx, o.cfg.DatabaseGrace); err != nil {
		return errors.Wrap(err, "interrupted while waiting for the database")
	}

	name := o.env.DatabaseContainer()
	booted := readiness.ContainsMarker(
		func(ctx context.Context) (string, error) {
			return o.deps.Engine.Logs(ctx, name)
		},
		o.cfg.DatabaseMarker,
		func(err error) {
			o.logger.Debug().Err(err).Msg("failed to fetch database logs")
		},
	)

	gw := o.deps.Engine.Gateway(name)
	check := func(ctx context.Context) bool {
		if !booted(ctx) {
			return false
		}

		res, err := gw.Execute(ctx, o.clientCommand(execStatement, "SELECT 1"))

		return err == nil && res.Succeeded()
	}

	if !readiness.Await(ctx, check, o.cfg.DatabasePoll.Interval, o.cfg.DatabasePoll.Attempts) {
		return errors.Wrapf(ErrDatabaseNotReady, "no %q in %s logs after %d attempts", o.cfg.DatabaseMarker, name, o.cfg.DatabasePoll.Attempts)
	}

	return nil
}

func (o *Orchestrator) loadDump(ctx context.Context) error {
	database := o.env.Credentials.Database
	gw := o.deps.Engine.Gateway(o.env.DatabaseContainer())

	commands := []struct {
		description string
		cmd         gateway.Command
	}{
		{
			description: "create database",
			cmd:         o.clientCommand(execStatement, "CREATE DATABASE IF NOT EXISTS "+quoteIdentifier(database)),
		},
		{
			description: "load dump",
			cmd:         o.clientCommand(execScript, database, path.Join(dumpMount, workspace.DumpFileName)),
		},
		{
			description: "apply setup script",
			cmd:         o.clientCommand(execScript, database, path.Join(setupScriptsMount, rehome.SetupScriptName)),
		},
	}

	for _, c := range commands {
		startedAt := time.Now()

		res, err := gw.Execute(ctx, c.cmd)
		if err != nil {
			return errors.Wrapf(err, "%s failed", c.description)
		}
		if err = res.Err(); err != nil {
			return errors.Wrapf(err, "%s failed", c.description)
		}

		o.logger.Info().Dur("elapsed_ms", time.Since(startedAt)).Msgf("%s: done", c.description)
	}

	return nil
}

func (o *Orchestrator) startApplication(ctx context.Context, prefix string) error {
	name := o.env.ApplicationContainer()
	if err := o.deps.Engine.RemoveContainer(ctx, name); err != nil {
		return err
	}

	creds := o.env.Credentials

	id, err := o.deps.Engine.RunContainer(ctx, dockerengine.ContainerSpec{
		Name:  name,
		Image: o.env.ApplicationImage,
		Env: []string{
			"WORDPRESS_TABLE_PREFIX=" + prefix,
			"WORDPRESS_DB_USER=" + creds.User,
			"WORDPRESS_DB_PASSWORD=" + creds.Password,
			"WORDPRESS_DB_NAME=" + creds.Database,
		},
		Labels: dockerengine.CreateContainerLabels(o.Report().RunID, o.env.Name, roleApplication),
		Ports: []dockerengine.PortMapping{
			{HostPort: o.env.ApplicationPort, ContainerPort: applicationContainerPort},
		},
		Volumes: []dockerengine.Volume{
			{Source: o.deps.Workspace.ContentDir(), Target: contentMount},
		},
		Links:         []string{o.env.DatabaseContainer() + ":mysql"},
		RestartAlways: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to start the application container")
	}

	o.logger.Debug().Str("container_id", id).Msg("application container started")

	return nil
}

func (o *Orchestrator) awaitApplication(ctx context.Context) bool {
	name := o.env.ApplicationContainer()
	check := readiness.ContainsMarker(
		func(ctx context.Context) (string, error) {
			return o.deps.Engine.Logs(ctx, name)
		},
		o.cfg.ApplicationMarker,
		func(err error) {
			o.logger.Debug().Err(err).Msg("failed to fetch application logs")
		},
	)

	return readiness.Await(ctx, check, o.cfg.ApplicationPoll.Interval, o.cfg.ApplicationPoll.Attempts)
}

func (o *Orchestrator) clientCommand(script string, args ...string) gateway.Command {
	return gateway.Command{
		Name:    "sh",
		Args:    append([]string{"-c", script, "sh", o.cfg.DatabaseClient}, args...),
		Timeout: o.cfg.CommandTimeout,
	}
}

func (o *Orchestrator) step(name string, fn func() error) error {
	startedAt := time.Now()
	err := fn()
	metrics.Pipeline.Observe(name, err == nil, startedAt)

	o.logger.Debug().Str("step", name).Bool("ok", err == nil).Dur("elapsed_ms", time.Since(startedAt)).Msg("step finished")

	return err
}

// advance moves to next if the step producing it succeeded.
func (o *Orchestrator) advance(ctx context.Context, next State, stepErr error) error {
	if stepErr != nil {
		return stepErr
	}

	if err := o.machine.Advance(next); err != nil {
		return err
	}

	snapshot := o.machine.Snapshot()
	o.update(func(r *Report) {
		r.State = snapshot.State
		r.UpdatedAt = snapshot.UpdatedAt
	})
	metrics.Pipeline.SetState(next.Ordinal())

	o.logger.Info().Str("state", next.String()).Msg("state changed")
	o.record(ctx)

	return nil
}

func (o *Orchestrator) fail(ctx context.Context, err error) (*Report, error) {
	if o.machine.Fail(err.Error()) {
		snapshot := o.machine.Snapshot()
		o.update(func(r *Report) {
			r.State = snapshot.State
			r.Reason = snapshot.Reason
			r.UpdatedAt = snapshot.UpdatedAt
		})
		metrics.Pipeline.SetState(Failed.Ordinal())

		o.logger.Error().Err(err).Str("failed_in", snapshot.FailedIn.String()).Msg("provisioning failed")
		o.record(context.WithoutCancel(ctx))
	}

	report := o.Report()

	return &report, err
}

func (o *Orchestrator) update(fn func(r *Report)) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fn(&o.report)
}

func (o *Orchestrator) record(ctx context.Context) {
	if o.deps.Recorder == nil {
		return
	}

	if err := o.deps.Recorder.Record(ctx, o.Report()); err != nil {
		o.logger.Warn().Err(err).Msg("failed to record the run")
	}
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
