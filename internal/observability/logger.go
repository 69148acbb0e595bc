package observability

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger is used by one-shot commands (SIMPLE profile).
	CLILogger *logging.Logger

	// ServerLogger is used by the gateway (STRUCTURED profile unless configured otherwise).
	ServerLogger *logging.Logger
)

// Logging profiles accepted by logging.profile.
const (
	ProfileSimple     = "simple"
	ProfileStructured = "structured"
)

// ServerLogOptions configures the gateway logger.
type ServerLogOptions struct {
	Service   string
	Level     string
	Profile   string
	Namespace string
}

// InitCLILogger sets up CLILogger. verbose forces DEBUG, otherwise level applies.
func InitCLILogger(service, level string, verbose bool) error {
	logger, err := logging.NewCLI(service)
	if err != nil {
		return fmt.Errorf("init cli logger: %w", err)
	}
	if verbose {
		level = "debug"
	}
	applyLevel(logger, level)
	CLILogger = logger
	return nil
}

// InitServerLogger sets up ServerLogger. The structured profile writes JSON to stderr with
// correlation middleware; the simple profile reuses the CLI console format.
func InitServerLogger(opts ServerLogOptions) error {
	switch strings.ToLower(strings.TrimSpace(opts.Profile)) {
	case ProfileSimple:
		logger, err := logging.NewCLI(opts.Service)
		if err != nil {
			return fmt.Errorf("init server logger: %w", err)
		}
		applyLevel(logger, opts.Level)
		ServerLogger = logger
		return nil
	case "", ProfileStructured:
	default:
		return fmt.Errorf("unknown logging profile %q", opts.Profile)
	}

	static := map[string]any{}
	if opts.Namespace != "" {
		static["namespace"] = opts.Namespace
	}
	logger, err := logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: severity(opts.Level),
		Service:      opts.Service,
		Environment:  "production",
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks: []logging.SinkConfig{{
			Type:    "console",
			Format:  "json",
			Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
		}},
		EnableCaller:     true,
		EnableStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("init server logger: %w", err)
	}
	ServerLogger = logger
	return nil
}

// Logger returns the server logger when the gateway runs, otherwise the CLI logger.
// It may return nil before either is initialized.
func Logger() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

func applyLevel(logger *logging.Logger, level string) {
	switch severity(level) {
	case "TRACE", "DEBUG":
		logger.SetLevel(logging.DEBUG)
	case "WARN":
		logger.SetLevel(logging.WARN)
	case "ERROR":
		logger.SetLevel(logging.ERROR)
	}
}

func severity(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}
