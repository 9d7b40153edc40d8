package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/reachability/infrastructure/config"
	"github.com/kaspanet/reachability/infrastructure/logger"
	"github.com/pkg/errors"
)

const (
	defaultLogFilename    = "reachabilitysim.log"
	defaultErrLogFilename = "reachabilitysim_err.log"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "info"
	defaultBlocks         = 10_000
	defaultMaxParents     = 4
	defaultQueries        = 10_000
)

var (
	defaultHomeDir = btcutil.AppDataDir("reachabilitysim", false)
	defaultLogDir  = filepath.Join(defaultHomeDir, defaultLogDirname)
)

type configFlags struct {
	AppDir        string `short:"b" long:"appdir" description:"Directory to store data"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
	LogLevel      string `short:"d" long:"loglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	Blocks        uint64 `short:"n" long:"blocks" description:"Number of blocks to generate. If 0, generates until the process is interrupted"`
	MaxParents    int    `long:"max-parents" description:"Maximum number of parents of a generated block"`
	Seed          int64  `long:"seed" description:"Seed of the random DAG generator. If 0, the current time is used"`
	PruneDepth    uint64 `long:"prune-depth" description:"Delete blocks more than this many tree heights below the selected tip. If 0, nothing is pruned"`
	MetricsListen string `long:"metrics-listen" description:"Serve prometheus metrics on this address, e.g. localhost:9100"`
	Profile       string `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	Verify        bool   `long:"verify" description:"Validate the reachability data and run random queries against a DAG traversal once done"`
	Queries       int    `long:"queries" description:"Number of random queries to run when --verify is set"`
	Memory        bool   `long:"memory" description:"Keep the database in memory instead of on disk"`
	config.ReachabilityFlags
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultConfig() *configFlags {
	return &configFlags{
		AppDir:     defaultHomeDir,
		LogDir:     defaultLogDir,
		LogLevel:   defaultLogLevel,
		Blocks:     defaultBlocks,
		MaxParents: defaultMaxParents,
		Queries:    defaultQueries,
	}
}

func parseConfig(args []string) (*configFlags, error) {
	cfg := defaultConfig()
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	err = cfg.ResolveReachability(parser)
	if err != nil {
		return nil, err
	}

	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	if cfg.MaxParents < 1 {
		return nil, errors.Errorf("--max-parents must be at least 1, got %d", cfg.MaxParents)
	}
	if cfg.Verify && cfg.Queries < 0 {
		return nil, errors.Errorf("--queries must not be negative, got %d", cfg.Queries)
	}
	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return nil, errors.New("The profile port must be between 1024 and 65535")
		}
	}

	err = logger.ParseAndSetLogLevels(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *configFlags) dataDir() string {
	return filepath.Join(cfg.AppDir, defaultDataDirname)
}

func (cfg *configFlags) logFile() string {
	return filepath.Join(cfg.LogDir, defaultLogFilename)
}

func (cfg *configFlags) errLogFile() string {
	return filepath.Join(cfg.LogDir, defaultErrLogFilename)
}
