package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/specialistvlad/proofgridgo/internal/app"
	"github.com/specialistvlad/proofgridgo/internal/numa"
	"github.com/specialistvlad/proofgridgo/internal/watch"
)

// WorkersEnv names the environment variable that sets the default pool size.
const WorkersEnv = "MAX_PROCESSES"

// WatchCommand is the subcommand that attaches to a running instance.
const WatchCommand = "watch"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("proofgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
ProofGridGo - Runs proof conversion plans over a NUMA-aware process pool.

Usage:
  proofgridgo [options] PLAN [INPUT_FILE]
  proofgridgo watch [options]

Arguments:
  PLAN
    Name of a built-in plan or of a plan declared in the plan files.
  INPUT_FILE
    YAML or JSON input. The result is written next to it as INPUT_FILE.converted.

Options:
`)
		flagSet.PrintDefaults()
	}

	defaultWorkers, err := workersFromEnv()
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	settingsFlag := flagSet.String("config", "", "Path to an optional YAML settings file.")
	plansFlag := flagSet.String("plans", "plans", "Comma-separated .hcl files or directories with declarative plans.")
	workersFlag := flagSet.Int("workers", defaultWorkers, "Number of process pool workers. Defaults to $"+WorkersEnv+" or 1.")
	perNumaFlag := flagSet.Int("max-workers-per-numa", numa.DefaultMaxWorkersPerNode, "Soft cap of concurrent processes bound to one NUMA node.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the status server (/health, /stats, /metrics, socket.io). 0 is disabled.")
	outputFlag := flagSet.String("output", "", "Where to write the result. Defaults to INPUT_FILE.converted, or stdout without an input.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No plan provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() > 2 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("too many arguments: %s", strings.Join(flagSet.Args()[2:], " "))}
	}

	cfg := app.Config{
		PlanName:          flagSet.Arg(0),
		InputPath:         flagSet.Arg(1),
		OutputPath:        *outputFlag,
		PlanPaths:         splitList(*plansFlag),
		LogFormat:         *logFormatFlag,
		LogLevel:          *logLevelFlag,
		StatusPort:        *statusPortFlag,
		WorkerCount:       *workersFlag,
		MaxWorkersPerNuma: *perNumaFlag,
	}

	if *settingsFlag != "" {
		explicit := make(map[string]bool)
		flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		settings, err := app.LoadSettings(*settingsFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		settings.ApplyTo(&cfg, explicit)
		slog.Debug("Settings file applied.", "path", *settingsFlag)
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// ParseWatch processes the arguments of the watch subcommand.
func ParseWatch(args []string, output io.Writer) (*watch.Options, bool, error) {
	flagSet := flag.NewFlagSet("proofgridgo watch", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Streams plan and stage events from a proofgridgo instance started with -status-port.

Usage:
  proofgridgo watch [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	urlFlag := flagSet.String("url", "http://localhost:8080", "Base URL of the status server.")
	timeoutFlag := flagSet.Duration("timeout", 15*time.Second, "How long to wait for the connection.")
	insecureFlag := flagSet.Bool("insecure", false, "Skip TLS certificate verification.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))}
	}
	if *timeoutFlag <= 0 {
		return nil, false, &ExitError{Code: 2, Message: "timeout must be positive"}
	}

	return &watch.Options{
		URL:                *urlFlag,
		ConnectTimeout:     *timeoutFlag,
		InsecureSkipVerify: *insecureFlag,
	}, false, nil
}

func workersFromEnv() (int, error) {
	v, ok := os.LookupEnv(WorkersEnv)
	if !ok || v == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s '%s': must be a positive integer", WorkersEnv, v)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
