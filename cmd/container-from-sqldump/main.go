package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/dockerengine"
	"github.com/lodthe/container-from-sqldump/internal/gateway"
	"github.com/lodthe/container-from-sqldump/internal/machine"
	"github.com/lodthe/container-from-sqldump/internal/provision"
	"github.com/lodthe/container-from-sqldump/internal/provisionrun"
	"github.com/lodthe/container-from-sqldump/internal/rehome"
	"github.com/lodthe/container-from-sqldump/internal/sitedb"
	"github.com/lodthe/container-from-sqldump/internal/workspace"
	"github.com/lodthe/container-from-sqldump/pkg/statusapi"

	awsconf "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	version         = "container-from-sqldump v1.0"
	shutdownTimeout = 5 * time.Second
	localhost       = "127.0.0.1"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		zlog.Error().Err(err).Msg("aborted")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "container-from-sqldump <container_name> <dump_file>",
		Short:         "Run a WordPress site and its database in containers from a SQL dump",
		Version:       version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the config file (default $CONFIG_PATH or config.yaml)")
	flags := registerFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		config, err := LoadConfig(configPath)
		if err != nil {
			return err
		}

		flags.apply(cmd, config)

		err = config.validate()
		if err != nil {
			return errors.Wrap(err, "invalid config")
		}

		setupLogger(config)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return run(ctx, config, args[0], args[1])
	}

	return cmd
}

func setupLogger(config *Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if config.LogFormat == PrettyLogFormat {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		zlog.Warn().Str("level", config.LogLevel).Msg("invalid log level, info is used")
		lvl = zerolog.InfoLevel
	}

	zlog.Logger = zlog.Logger.Level(lvl)
}

func run(ctx context.Context, config *Config, name, dumpPath string) error {
	logger := zlog.Logger
	logger.Info().Msg(version)

	// Preflight checks and input validation happen before any container is touched.
	err := provision.CheckPlatform(runtime.GOOS)
	if err != nil {
		return err
	}

	err = provision.ValidateDump(dumpPath)
	if err != nil {
		return err
	}

	hostAddress, clientConfig, err := resolveDaemon(ctx, config, logger)
	if err != nil {
		return err
	}

	cli, err := dockerengine.NewClient(clientConfig)
	if err != nil {
		return errors.Wrap(provision.ErrPreflight, err.Error())
	}
	defer cli.Close()

	engine := dockerengine.New(logger, cli)

	err = provision.CheckEngine(ctx, engine)
	if err != nil {
		return err
	}

	layout, err := workspace.New(config.WorkspaceRoot, name)
	if err != nil {
		return errors.Wrap(provision.ErrValidation, err.Error())
	}

	hasher, err := rehome.NewHasher(config.Admin.HashScheme)
	if err != nil {
		return err
	}

	var (
		recorder provision.Recorder
		runs     statusapi.RunStorage
	)
	if config.AWS.RunsTable != "" {
		repo, err := newRunRepository(ctx, config)
		if err != nil {
			return err
		}

		recorder, runs = repo, repo
	}

	runID := provisionrun.NewID()
	orchestrator := provision.NewOrchestrator(logger, runID, config.environment(name, dumpPath, hostAddress), config.orchestratorConfig(), provision.Deps{
		Engine: engine,
		Connect: func(ctx context.Context, cfg sitedb.Config) (provision.Site, error) {
			return sitedb.Connect(ctx, logger, cfg)
		},
		Workspace: layout,
		Hasher:    hasher,
		Recorder:  recorder,
	})

	if config.Status.Address != "" {
		srv := startStatusServer(config, orchestrator, runs)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				zlog.Error().Err(err).Msg("status server shutdown failed")
			}
		}()
	}

	report, err := orchestrator.Run(ctx)
	if err != nil {
		return err
	}

	if !report.ApplicationConfirmed {
		logger.Warn().Str("container", report.ApplicationContainer).Msg("the application may still be starting, check its logs")
	}

	logger.Info().Str("url", report.SiteURL).Msg("done! you can access the site")
	logger.Info().Str("prefix", report.Prefix).Msgf("connect with `%s`", report.ConnectHint())
	logger.Info().Msgf("attach with `%s`", report.AttachHint())
	logger.Info().Str("login", config.Admin.Login).Msg("log in with the known admin account")

	return nil
}

// resolveDaemon returns the address of published ports and the docker client config.
// On macOS the daemon runs inside a docker-machine VM unless the host address is configured.
func resolveDaemon(ctx context.Context, config *Config, logger zerolog.Logger) (string, dockerengine.ClientConfig, error) {
	if config.HostAddress != "" {
		return config.HostAddress, dockerengine.ClientConfig{}, nil
	}

	if runtime.GOOS != "darwin" {
		return localhost, dockerengine.ClientConfig{}, nil
	}

	resolver := machine.NewResolver(logger, gateway.NewLocal(logger))
	if !resolver.Installed(ctx) {
		return "", dockerengine.ClientConfig{}, errors.Wrap(provision.ErrPreflight, "docker-machine binary not found")
	}

	endpoint, err := resolver.Resolve(ctx)
	if err != nil {
		return "", dockerengine.ClientConfig{}, errors.Wrap(provision.ErrPreflight, err.Error())
	}

	return endpoint.IP, dockerengine.ClientConfig{
		Host:      endpoint.Host,
		TLSVerify: endpoint.TLSVerify,
		CertPath:  endpoint.CertPath,
	}, nil
}

func newRunRepository(ctx context.Context, config *Config) (*provisionrun.Repo, error) {
	var awsOpts []func(*awsconf.LoadOptions) error
	if config.AWS.AccessKeyID != "" {
		// Otherwise, we let SDK to pick credentials from available sources automatically.
		awsOpts = append(awsOpts, awsconf.WithCredentialsProvider(config))
	}

	awsOpts = append(awsOpts, awsconf.WithRegion(config.AWS.Region))

	awsConfig, err := awsconf.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return provisionrun.NewRepository(dynamodb.NewFromConfig(awsConfig), config.AWS.RunsTable), nil
}

func startStatusServer(config *Config, source statusapi.ReportSource, runs statusapi.RunStorage) *http.Server {
	srv := &http.Server{
		Addr:              config.Status.Address,
		Handler:           statusapi.NewRouter(config.Status.Timeout, source, runs),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.Status.Timeout + 5*time.Second,
	}

	go func() {
		zlog.Info().Str("address", config.Status.Address).Msg("starting the status server")

		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("status server failed")
		}
	}()

	return srv
}
