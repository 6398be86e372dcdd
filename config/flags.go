// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowball"
	"github.com/ava-labs/avalanche-consensus/trace"
)

const (
	DefaultHTTPPort = 9650

	appName = "snowsim"
)

var (
	// [defaultUnexpandedDataDir] will be expanded when reading the flags
	defaultDataDir         = filepath.Join("$HOME", "."+appName)
	defaultLogDir          = filepath.Join(defaultDataDir, "logs")
	defaultConfigFileTypes = []string{"json", "yaml", "toml"}
)

func addConsensusFlags(fs *pflag.FlagSet) {
	fs.Int(SnowSampleSizeKey, snowball.DefaultParameters.K, "Number of nodes to query for each network poll")
	fs.Int(SnowQuorumSizeKey, snowball.DefaultParameters.Alpha, "Threshold of nodes required to update this node's preference and increase its confidence in a network poll")
	fs.Int(SnowVirtuousCommitThresholdKey, snowball.DefaultParameters.BetaVirtuous, "Beta value to use for virtuous transactions")
	fs.Int(SnowRogueCommitThresholdKey, snowball.DefaultParameters.BetaRogue, "Beta value to use for rogue transactions")
	fs.Int(SnowConcurrentRepollsKey, snowball.DefaultParameters.ConcurrentRepolls, "Minimum number of concurrent polls for finalizing consensus")
	fs.Int(SnowOptimalProcessingKey, snowball.DefaultParameters.OptimalProcessing, "Optimal number of processing containers in consensus")
	fs.Int(SnowMaxProcessingKey, snowball.DefaultParameters.MaxOutstandingItems, "Maximum number of processing items to be considered healthy")
	fs.Duration(SnowMaxTimeProcessingKey, snowball.DefaultParameters.MaxItemProcessingTime, "Maximum amount of time an item should be processing and still be healthy")
	fs.Int(SnowMixedQueryNumPushVdrKey, snowball.DefaultParameters.MixedQueryNumPushVdr, fmt.Sprintf("If this node is a validator, when a container is inserted into consensus, send a Push Query to %s validators and a Pull Query to (%s - %s) validators. Must be in [0, %s]", SnowMixedQueryNumPushVdrKey, SnowSampleSizeKey, SnowMixedQueryNumPushVdrKey, SnowSampleSizeKey))
	fs.Int(SnowMixedQueryNumPushNonVdrKey, snowball.DefaultParameters.MixedQueryNumPushNonVdr, fmt.Sprintf("If this node is not a validator, when a container is inserted into consensus, send a Push Query to %s validators and a Pull Query to (%s - %s) validators. Must be in [0, %s]", SnowMixedQueryNumPushNonVdrKey, SnowSampleSizeKey, SnowMixedQueryNumPushNonVdrKey, SnowSampleSizeKey))
}

func addLoggingFlags(fs *pflag.FlagSet) {
	fs.String(LogsDirKey, defaultLogDir, "Logging directory")
	fs.String(LogLevelKey, "info", "The log level. Should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogDisplayLevelKey, "", "The log display level. If left blank, will inherit the value of log-level. Otherwise, should be one of {verbo, debug, trace, info, warn, error, fatal, off}")
	fs.String(LogFormatKey, "auto", "The structure of log format. Defaults to 'auto' which formats terminal-like logs, when the output is a terminal. Otherwise, should be one of {auto, plain, colors, json}")
	fs.Uint(LogRotaterMaxSizeKey, 8, "The maximum file size in megabytes of the log file before it gets rotated.")
	fs.Uint(LogRotaterMaxFilesKey, 7, "The maximum number of old log files to retain. 0 means retain all old log files.")
	fs.Uint(LogRotaterMaxAgeKey, 0, "The maximum number of days to retain old log files based on the timestamp encoded in their filename. 0 means retain all old log files.")
	fs.Bool(LogRotaterCompressEnabledKey, false, "Enables the compression of rotated log files through gzip.")
	fs.Bool(LogDisableDisplayKey, false, "Disables displaying logs in stdout.")
}

func addTracingFlags(fs *pflag.FlagSet) {
	fs.Bool(TracingEnabledKey, false, "If true, enable opentelemetry tracing")
	fs.String(TracingExporterTypeKey, trace.GRPC.String(), fmt.Sprintf("Type of exporter to use for tracing. Options are [%s, %s]", trace.GRPC, trace.HTTP))
	fs.String(TracingEndpointKey, "localhost:4317", "The endpoint to send trace data to")
	fs.Bool(TracingInsecureKey, true, "If true, don't use TLS when sending trace data")
	fs.Float64(TracingSampleRateKey, 0.1, "The fraction of traces to sample. If >= 1, always sample. If <= 0, never sample")
	fs.StringToString(TracingHeadersKey, map[string]string{}, "The headers to provide the trace indexer")
}

func addSimulationFlags(fs *pflag.FlagSet) {
	fs.Int(SimNumNodesKey, 100, "Number of simulated nodes. Must be at least the sample size")
	fs.Int(SimNumBlocksKey, 20, "Number of conflicting blocks issued into every simulated node")
	fs.Int64(SimSeedKey, 0, "Seed of the deterministic source that drives the simulation")
	fs.Int(SimMaxRoundsKey, 1_000_000, "Maximum number of polls to apply before giving up. 0 means unlimited")
	fs.Float64(SimPollsPerSecondKey, 0, "Maximum number of polls applied per second. 0 means unlimited")
	fs.Int(SimPollBurstKey, 1, "Maximum number of polls applied in a single burst")
}

func addHTTPFlags(fs *pflag.FlagSet) {
	fs.Bool(HTTPEnabledKey, true, "If true, serve metrics and health over HTTP while the simulation runs")
	fs.String(HTTPHostKey, "127.0.0.1", "Address of the HTTP server")
	fs.Uint(HTTPPortKey, DefaultHTTPPort, "Port of the HTTP server")
	fs.StringSlice(HTTPAllowedOriginsKey, []string{"*"}, "Origins to allow on the HTTP port. Defaults to * which allows all origins")
	fs.Duration(HTTPShutdownTimeoutKey, 10*time.Second, "Maximum duration to wait for existing connections to complete during shutdown")
	fs.Bool(HTTPKeepServingKey, false, "If true, keep serving HTTP after the simulation finishes until interrupted")
	fs.Duration(HealthCheckFreqKey, 30*time.Second, "Time between health checks of the simulated nodes")
}

// BuildFlagSet returns the complete set of flags for the simulator
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)

	fs.String(ConfigFileKey, "", fmt.Sprintf("Specifies a config file. Ignored if %s is specified", ConfigContentKey))
	fs.String(ConfigContentKey, "", "Specifies base64 encoded config content")
	fs.String(ConfigContentTypeKey, "json", fmt.Sprintf("Specifies the format of the base64 encoded config content. Available values: %v", defaultConfigFileTypes))

	addConsensusFlags(fs)
	addLoggingFlags(fs)
	addTracingFlags(fs)
	addSimulationFlags(fs)
	addHTTPFlags(fs)
	return fs
}
