// Package cmd provides command-line interface commands for mongograph.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"mongograph/config"
	"mongograph/storage"
	"mongograph/util"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// Global flags for db commands
var (
	outputJSON bool
	configFile string
	noColor    bool
	quiet      bool
	verbose    bool
)

// PingResult is the outcome of a 'db ping'
type PingResult struct {
	Connected  bool   `json:"connected"`
	Target     string `json:"target"`
	Database   string `json:"database"`
	Host       string `json:"host,omitempty"`
	Timeout    bool   `json:"timeout,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// NewDBCmd creates the root db command with all subcommands.
func NewDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect the MongoDB connection",
		Long: `Inspect the MongoDB connection the server would use at startup.

Connection settings come from MONGO_URI, MONGOGRAPH_* environment variables and config.yaml,
exactly as for the server.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	dbCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	dbCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: ./config.yaml or ./config/config.yaml)")
	dbCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	dbCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
	dbCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log the connection attempt to stderr")

	dbCmd.AddCommand(newPingCmd())

	return dbCmd
}

// newPingCmd creates the 'ping' subcommand
func newPingCmd() *cobra.Command {
	var (
		uri     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Make one connection attempt and report the server host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("uri") {
				cfg.MongoDB.URI = uri
			}
			if cmd.Flags().Changed("timeout") {
				if timeout <= 0 {
					return fmt.Errorf("--timeout must be positive, got %s", timeout)
				}
				cfg.MongoDB.ConnectTimeout = timeout
			}

			logger := zap.NewNop()
			if verbose {
				logger, err = zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("failed to initialize logger: %w", err)
				}
			}
			defer func() { _ = logger.Sync() }()

			result, pingErr := ping(cmd.Context(), cmd.ErrOrStderr(), cfg, logger.Sugar())

			if outputJSON {
				if err := outputAsJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				renderPingResult(cmd.OutOrStdout(), result)
			}
			return pingErr
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "", "Override the MongoDB connection string")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override the connect timeout (e.g. 5s)")

	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// ping runs a single bootstrap attempt and disconnects again
func ping(ctx context.Context, progress io.Writer, cfg *config.Config, sugar *zap.SugaredLogger) (*PingResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &PingResult{
		Target:   storage.RedactURI(cfg.MongoDB.URI),
		Database: cfg.MongoDB.Database,
	}

	var s *spinner.Spinner
	if !outputJSON && !quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(progress))
		s.Suffix = fmt.Sprintf(" Connecting to %s...", result.Target)
		s.Start()
	}

	start := time.Now()
	db, err := storage.NewMongoDB(ctx, storage.ConnectOptions{
		URI:         cfg.MongoDB.URI,
		Database:    cfg.MongoDB.Database,
		Timeout:     cfg.MongoDB.ConnectTimeout,
		MaxPoolSize: cfg.MongoDB.MaxPoolSize,
		AppName:     cfg.MongoDB.AppName,
	}, sugar)
	result.DurationMS = time.Since(start).Milliseconds()

	if s != nil {
		s.Stop()
	}

	if err != nil {
		result.Error = util.SanitizeError(err)
		result.Timeout = errors.Is(err, storage.ErrConnectTimeout)
		return result, err
	}

	result.Connected = true
	result.Host = db.Host

	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = db.Close(closeCtx)

	return result, nil
}

// renderPingResult displays the ping outcome for humans
func renderPingResult(w io.Writer, r *PingResult) {
	if r.Connected {
		successColor.Fprintf(w, "✓ Connected to MongoDB\n")
		fmt.Fprintf(w, "  Target:   %s\n", r.Target)
		fmt.Fprintf(w, "  Database: %s\n", r.Database)
		fmt.Fprintf(w, "  Host:     %s\n", r.Host)
		infoColor.Fprintf(w, "  Took %dms\n", r.DurationMS)
		return
	}

	errorColor.Fprintf(w, "✗ MongoDB connection failed\n")
	fmt.Fprintf(w, "  Target:   %s\n", r.Target)
	if r.Timeout {
		fmt.Fprintf(w, "  Reason:   timed out after %dms\n", r.DurationMS)
	}
	fmt.Fprintf(w, "  Error:    %s\n", r.Error)
}

// outputAsJSON outputs data as formatted JSON
func outputAsJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
