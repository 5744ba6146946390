package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getpushd/pushd/pkg/config"
	"github.com/getpushd/pushd/pkg/logging"
	"github.com/getpushd/pushd/pkg/server"
	"github.com/getpushd/pushd/pkg/webpush"
)

// serveFlags holds the flags shared by the serve and start commands.
type serveFlags struct {
	port        int
	host        string
	endpointURL string
	configFile  string
	logLevel    string
	logFormat   string
	detach      bool
	pidFile     string
}

var serveOpts serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mock push service in the foreground",
	Example: `  # Run with defaults
  pushd serve

  # Custom port and JSON logs
  pushd serve --port 3000 --log-format json

  # Run with a config file
  pushd serve --config pushd.yaml

  # Run detached (same as 'pushd start')
  pushd serve --detach`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, &serveOpts)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	registerServeFlags(serveCmd, &serveOpts, false)
}

func registerServeFlags(cmd *cobra.Command, f *serveFlags, detachDefault bool) {
	cmd.Flags().IntVarP(&f.port, "port", "p", config.DefaultPort, "HTTP server port")
	cmd.Flags().StringVar(&f.host, "host", config.DefaultHost, "Interface to bind to")
	cmd.Flags().StringVar(&f.endpointURL, "endpoint-url", "", "Base URL used in subscription endpoints (default: derived from host and port)")
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	cmd.Flags().BoolVarP(&f.detach, "detach", "d", detachDefault, "Run server in background")
	cmd.Flags().StringVar(&f.pidFile, "pid-file", DefaultPIDPath(), "Path to PID file")
}

func runServe(cmd *cobra.Command, f *serveFlags) error {
	if f.detach && os.Getenv(childEnvVar) == "" {
		return daemonize(f.pidFile)
	}

	cfg, err := buildConfig(cmd, f)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(f.logLevel),
		Format: logging.ParseFormat(f.logFormat),
	})

	engine := webpush.NewEngine(cfg.BaseURL(), webpush.WithLogger(log.With("component", "engine")))
	srv := server.New(cfg, engine,
		server.WithLogger(log.With("component", "server")),
		server.WithVersion(Version),
	)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start push service: %w", err)
	}

	if f.pidFile != "" {
		info := &PIDFile{
			PID:         os.Getpid(),
			StartTime:   time.Now(),
			Version:     Version,
			Host:        cfg.Host,
			Port:        srv.Port(),
			EndpointURL: cfg.BaseURL(),
		}
		if err := WritePIDFile(f.pidFile, info); err != nil {
			log.Warn("failed to write PID file", "path", f.pidFile, "error", err)
		}
		defer func() {
			if err := RemovePIDFile(f.pidFile); err != nil {
				log.Warn("failed to remove PID file", "path", f.pidFile, "error", err)
			}
		}()
	}

	fmt.Printf("Mock push service running on http://%s:%d\n", cfg.Host, srv.Port())
	fmt.Printf("Subscription endpoints issued under %s\n", cfg.BaseURL())
	fmt.Println("Press Ctrl+C to stop")

	waitForShutdown(srv, log)
	return nil
}

// buildConfig layers the configuration: defaults, then the config file,
// then any flag the user set explicitly.
func buildConfig(cmd *cobra.Command, f *serveFlags) (*config.ServerConfig, error) {
	cfg := config.Default()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("endpoint-url") {
		cfg.EndpointURL = f.endpointURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// daemonize re-executes the current process in the background and reports
// once the child has written its PID file.
func daemonize(pidFilePath string) error {
	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), childEnvVar+"=1")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start background process: %w", err)
	}

	// Give the child a moment to bind its port and write the PID file.
	time.Sleep(500 * time.Millisecond)

	info, err := ReadPIDFile(pidFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: server may have failed to start (no PID file yet: %v)\n", err)
		return nil
	}
	if !info.IsRunning() {
		return errors.New("background process exited immediately")
	}

	fmt.Printf("pushd started in background (PID %d)\n", info.PID)
	fmt.Printf("Push service: %s\n", info.ServerURL())
	return nil
}

// waitForShutdown blocks until SIGINT or SIGTERM, then stops the server.
func waitForShutdown(srv *server.Server, log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	log.Info("shutting down", "signal", sig.String())
	if err := srv.Stop(); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
