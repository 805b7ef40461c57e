package cli

import (
	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "UNITRUN"

// Flag names.
const (
	VerboseFlagName     = "verbose"
	ConfigFlagName      = "config"
	TestDirFlagName     = "testdir"
	RootFlagName        = "root"
	LogLevelFlagName    = "log-level"
	MetricsFileFlagName = "metrics-file"
)

func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

// Flags returns a fresh set of flags. urfave/cli records env var lookups on
// the flag values, so every app gets its own.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    VerboseFlagName,
			Aliases: []string{"v"},
			EnvVars: prefixEnvVar("VERBOSE"),
			Usage:   "Pass -v to every test and relay test output",
		},
		&cli.StringFlag{
			Name:    ConfigFlagName,
			EnvVars: prefixEnvVar("CONFIG"),
			Usage:   "Path to a YAML config file (default: <testdir>/unitrun.yaml when present)",
		},
		&cli.StringFlag{
			Name:    TestDirFlagName,
			Value:   ".",
			EnvVars: prefixEnvVar("TESTDIR"),
			Usage:   "Directory from which to discover utest.* files",
		},
		&cli.StringFlag{
			Name:    RootFlagName,
			EnvVars: prefixEnvVar("ROOT"),
			Usage:   "Repository root that ENVIRONMENT-* and CODE-EXTRACT paths are relative to (default: two levels above the test directory)",
		},
		&cli.StringFlag{
			Name:    LogLevelFlagName,
			Value:   "warn",
			EnvVars: prefixEnvVar("LOG_LEVEL"),
			Usage:   "Log level: trace, debug, info, warn, error or crit. --verbose lowers the default to info",
		},
		&cli.StringFlag{
			Name:    MetricsFileFlagName,
			EnvVars: prefixEnvVar("METRICS_FILE"),
			Usage:   "Write Prometheus metrics for the run to this file",
		},
	}
}
