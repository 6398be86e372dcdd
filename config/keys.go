// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

// #nosec G101
const (
	ConfigFileKey        = "config-file"
	ConfigContentKey     = "config-file-content"
	ConfigContentTypeKey = "config-file-content-type"

	// Consensus
	SnowSampleSizeKey              = "snow-sample-size"
	SnowQuorumSizeKey              = "snow-quorum-size"
	SnowVirtuousCommitThresholdKey = "snow-virtuous-commit-threshold"
	SnowRogueCommitThresholdKey    = "snow-rogue-commit-threshold"
	SnowConcurrentRepollsKey       = "snow-concurrent-repolls"
	SnowOptimalProcessingKey       = "snow-optimal-processing"
	SnowMaxProcessingKey           = "snow-max-processing"
	SnowMaxTimeProcessingKey       = "snow-max-time-processing"
	SnowMixedQueryNumPushVdrKey    = "snow-mixed-query-num-push-vdr"
	SnowMixedQueryNumPushNonVdrKey = "snow-mixed-query-num-push-non-vdr"

	// Logging
	LogsDirKey                   = "log-dir"
	LogLevelKey                  = "log-level"
	LogDisplayLevelKey           = "log-display-level"
	LogFormatKey                 = "log-format"
	LogRotaterMaxSizeKey         = "log-rotater-max-size"
	LogRotaterMaxFilesKey        = "log-rotater-max-files"
	LogRotaterMaxAgeKey          = "log-rotater-max-age"
	LogRotaterCompressEnabledKey = "log-rotater-compress-enabled"
	LogDisableDisplayKey         = "log-disable-display"

	// Tracing
	TracingEnabledKey      = "tracing-enabled"
	TracingEndpointKey     = "tracing-endpoint"
	TracingInsecureKey     = "tracing-insecure"
	TracingSampleRateKey   = "tracing-sample-rate"
	TracingExporterTypeKey = "tracing-exporter-type"
	TracingHeadersKey      = "tracing-headers"

	// Simulation
	SimNumNodesKey       = "sim-num-nodes"
	SimNumBlocksKey      = "sim-num-blocks"
	SimSeedKey           = "sim-seed"
	SimMaxRoundsKey      = "sim-max-rounds"
	SimPollsPerSecondKey = "sim-polls-per-second"
	SimPollBurstKey      = "sim-poll-burst"

	// HTTP
	HTTPEnabledKey         = "http-enabled"
	HTTPHostKey            = "http-host"
	HTTPPortKey            = "http-port"
	HTTPAllowedOriginsKey  = "http-allowed-origins"
	HTTPShutdownTimeoutKey = "http-shutdown-timeout"
	HTTPKeepServingKey     = "http-keep-serving"
	HealthCheckFreqKey     = "health-check-frequency"
)
