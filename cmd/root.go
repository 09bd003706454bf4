package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/ptpapi/config"
	"github.com/s0up4200/ptpapi/ptp"
)

var (
	cfgFile     string
	appCfg      *config.AppConfig
	clientCfg   *config.Config
	logger      zerolog.Logger
	ptpClient   *ptp.Client
	requestWait time.Duration

	// Global flags
	logLevel     string
	outputFormat string
	metricsAddr  string
	flagAPIUser  string
	flagAPIKey   string
	flagPasskey  string
	flagBaseURL  string
	flagNoRetry  bool

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ptpapi",
	Short: "A command line client for the PassThePopcorn API",
	Long: `ptpapi talks to PassThePopcorn on your behalf: search the catalogue,
inspect movies and torrents, read your inbox and download torrent files,
optionally handing them straight to qBittorrent.

Credentials come from the config file, PTP_* environment variables (a .env
file is read too) or flags, in increasing order of precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeApp,
}

// SetVersion records build information for the version and update commands.
func SetVersion(v, built string) {
	version = v
	buildTime = built
	rootCmd.Version = fmt.Sprintf("%s (built %s)", v, built)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "override the configured log level (trace, debug, info, warn, error)")
	flags.StringVarP(&outputFormat, "output", "o", outputTable, "output format (table, json, yaml)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	flags.StringVar(&flagAPIUser, "api-user", "", "PTP API user")
	flags.StringVar(&flagAPIKey, "api-key", "", "PTP API key")
	flags.StringVar(&flagPasskey, "passkey", "", "PTP passkey")
	flags.StringVar(&flagBaseURL, "base-url", "", "PTP base URL")
	flags.BoolVar(&flagNoRetry, "no-retry", false, "do not retry transient failures")
}

// initializeApp loads configuration and builds the PTP client
func initializeApp(cmd *cobra.Command, args []string) error {
	if err := validateOutputFormat(outputFormat); err != nil {
		return err
	}

	_ = godotenv.Load()

	var err error
	appCfg, err = config.LoadApp(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		appCfg.Logging.Level = logLevel
	}
	logger = setupLogger(appCfg.Logging)

	clientCfg, err = config.Resolve(config.Sources{
		Env:      config.Environ(os.Environ()),
		File:     appCfg.PTP,
		Explicit: explicitSettings(cmd),
	})
	if err != nil {
		return fmt.Errorf("failed to resolve client configuration: %w", err)
	}

	requestWait, err = appCfg.Limits.TimeoutDuration()
	if err != nil {
		return err
	}

	opts := []ptp.Option{
		ptp.WithTimeout(requestWait),
		ptp.WithRateLimit(appCfg.Limits.Capacity, appCfg.Limits.Rate),
		ptp.WithUserAgent("ptpapi/" + version),
	}

	if metricsAddr != "" {
		registry := prometheus.NewRegistry()
		opts = append(opts, ptp.WithMetrics(registry))
		serveMetrics(cmd.Context(), metricsAddr, registry)
	}

	ptpClient, err = ptp.NewClient(clientCfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create PTP client: %w", err)
	}

	settings, err := clientCfg.Settings()
	if err == nil {
		logger.Debug().Fields(settings.Redacted()).Msg("Resolved client configuration")
	}

	return nil
}

// explicitSettings collects the credential flags the user actually set.
func explicitSettings(cmd *cobra.Command) map[string]any {
	explicit := map[string]any{}
	set := func(flag string, key config.Key, value any) {
		if cmd.Flags().Changed(flag) {
			explicit[string(key)] = value
		}
	}

	set("api-user", config.KeyAPIUser, flagAPIUser)
	set("api-key", config.KeyAPIKey, flagAPIKey)
	set("passkey", config.KeyPasskey, flagPasskey)
	set("base-url", config.KeyBaseURL, flagBaseURL)
	set("no-retry", config.KeyRetry, !flagNoRetry)

	return explicit
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// setupLoggerFromFlags builds a console logger for commands that run
// without the config file.
func setupLoggerFromFlags() zerolog.Logger {
	return setupLogger(config.LoggingConfig{
		Level:  logLevel,
		Format: "console",
		Color:  true,
	})
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
