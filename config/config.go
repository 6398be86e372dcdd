// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/avalanche-consensus/simulator"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowball"
	"github.com/ava-labs/avalanche-consensus/trace"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
)

const envPrefix = "snowsim"

var (
	errTooFewNodes           = errors.New("number of nodes must be at least the sample size")
	errNoBlocks              = errors.New("number of blocks must be positive")
	errNegativeMaxRounds     = errors.New("max rounds must be non-negative")
	errInvalidPollRate       = errors.New("polls per second must be non-negative")
	errInvalidPollBurst      = errors.New("poll burst must be positive when the poll rate is limited")
	errInvalidHTTPPort       = errors.New("http port must fit in 16 bits")
	errInvalidHealthFreq     = errors.New("health check frequency must be positive")
	errTracingEndpointEmpty  = fmt.Errorf("%s cannot be empty", TracingEndpointKey)
	errUnsupportedConfigType = errors.New("unsupported config content type")
)

// BuildViper parses [args] into [fs] and returns a viper instance that merges
// the flags, the environment, and the optional config file or content.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(envPrefix)
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	switch {
	case v.IsSet(ConfigContentKey):
		configContentB64 := v.GetString(ConfigContentKey)
		configBytes, err := base64.StdEncoding.DecodeString(configContentB64)
		if err != nil {
			return nil, fmt.Errorf("unable to decode base64 content: %w", err)
		}

		configType := v.GetString(ConfigContentTypeKey)
		if !isSupportedConfigType(configType) {
			return nil, fmt.Errorf("%w: %q", errUnsupportedConfigType, configType)
		}
		v.SetConfigType(configType)
		if err := v.ReadConfig(bytes.NewBuffer(configBytes)); err != nil {
			return nil, err
		}
	case v.IsSet(ConfigFileKey):
		filename := GetExpandedArg(v, ConfigFileKey)
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func isSupportedConfigType(configType string) bool {
	for _, supported := range defaultConfigFileTypes {
		if configType == supported {
			return true
		}
	}
	return false
}

// GetExpandedArg gets the string in viper corresponding to [key] and expands
// any variables using the OS env.
func GetExpandedArg(v *viper.Viper, key string) string {
	return os.ExpandEnv(v.GetString(key))
}

func getConsensusParameters(v *viper.Viper) (snowball.Parameters, error) {
	p := snowball.Parameters{
		K:                       v.GetInt(SnowSampleSizeKey),
		Alpha:                   v.GetInt(SnowQuorumSizeKey),
		BetaVirtuous:            v.GetInt(SnowVirtuousCommitThresholdKey),
		BetaRogue:               v.GetInt(SnowRogueCommitThresholdKey),
		ConcurrentRepolls:       v.GetInt(SnowConcurrentRepollsKey),
		OptimalProcessing:       v.GetInt(SnowOptimalProcessingKey),
		MaxOutstandingItems:     v.GetInt(SnowMaxProcessingKey),
		MaxItemProcessingTime:   v.GetDuration(SnowMaxTimeProcessingKey),
		MixedQueryNumPushVdr:    v.GetInt(SnowMixedQueryNumPushVdrKey),
		MixedQueryNumPushNonVdr: v.GetInt(SnowMixedQueryNumPushNonVdrKey),
	}
	return p, p.Verify()
}

func getLoggingConfig(v *viper.Viper) (logging.Config, error) {
	loggingConfig := logging.Config{}
	loggingConfig.Directory = GetExpandedArg(v, LogsDirKey)
	var err error
	loggingConfig.LogLevel, err = logging.ToLevel(v.GetString(LogLevelKey))
	if err != nil {
		return loggingConfig, err
	}
	logDisplayLevel := v.GetString(LogDisplayLevelKey)
	if logDisplayLevel == "" {
		logDisplayLevel = v.GetString(LogLevelKey)
	}
	loggingConfig.DisplayLevel, err = logging.ToLevel(logDisplayLevel)
	if err != nil {
		return loggingConfig, err
	}
	loggingConfig.LogFormat, err = logging.ToFormat(v.GetString(LogFormatKey), os.Stdout.Fd())
	if err != nil {
		return loggingConfig, err
	}
	loggingConfig.DisableWriterDisplaying = v.GetBool(LogDisableDisplayKey)
	loggingConfig.MaxSize = int(v.GetUint(LogRotaterMaxSizeKey))
	loggingConfig.MaxFiles = int(v.GetUint(LogRotaterMaxFilesKey))
	loggingConfig.MaxAge = int(v.GetUint(LogRotaterMaxAgeKey))
	loggingConfig.Compress = v.GetBool(LogRotaterCompressEnabledKey)
	loggingConfig.LoggerName = appName
	return loggingConfig, nil
}

func getTraceConfig(v *viper.Viper) (trace.Config, error) {
	enabled := v.GetBool(TracingEnabledKey)
	if !enabled {
		return trace.Config{
			Enabled: false,
		}, nil
	}

	exporterTypeStr := v.GetString(TracingExporterTypeKey)
	exporterType, err := trace.ParseExporterType(exporterTypeStr)
	if err != nil {
		return trace.Config{}, err
	}

	endpoint := v.GetString(TracingEndpointKey)
	if endpoint == "" {
		return trace.Config{}, errTracingEndpointEmpty
	}

	return trace.Config{
		ExporterConfig: trace.ExporterConfig{
			Type:     exporterType,
			Endpoint: endpoint,
			Insecure: v.GetBool(TracingInsecureKey),
			Headers:  v.GetStringMapString(TracingHeadersKey),
		},
		Enabled:         true,
		TraceSampleRate: v.GetFloat64(TracingSampleRateKey),
		AppName:         appName,
	}, nil
}

func getHTTPConfig(v *viper.Viper) (simulator.HTTPConfig, error) {
	port := v.GetUint(HTTPPortKey)
	if port > math.MaxUint16 {
		return simulator.HTTPConfig{}, fmt.Errorf("%w: %d", errInvalidHTTPPort, port)
	}
	return simulator.HTTPConfig{
		Enabled:         v.GetBool(HTTPEnabledKey),
		Host:            v.GetString(HTTPHostKey),
		Port:            uint16(port),
		AllowedOrigins:  v.GetStringSlice(HTTPAllowedOriginsKey),
		ShutdownTimeout: v.GetDuration(HTTPShutdownTimeoutKey),
		KeepServing:     v.GetBool(HTTPKeepServingKey),
	}, nil
}

// GetConfig returns the simulator config described by [v].
func GetConfig(v *viper.Viper) (simulator.Config, error) {
	var (
		config = simulator.Config{
			NumNodes:        v.GetInt(SimNumNodesKey),
			NumBlocks:       v.GetInt(SimNumBlocksKey),
			Seed:            v.GetInt64(SimSeedKey),
			MaxRounds:       v.GetInt(SimMaxRoundsKey),
			PollsPerSecond:  v.GetFloat64(SimPollsPerSecondKey),
			PollBurst:       v.GetInt(SimPollBurstKey),
			HealthCheckFreq: v.GetDuration(HealthCheckFreqKey),
		}
		err error
	)

	config.Consensus, err = getConsensusParameters(v)
	if err != nil {
		return simulator.Config{}, err
	}

	switch {
	case config.NumNodes < config.Consensus.K:
		return simulator.Config{}, fmt.Errorf("%w: %d < %d", errTooFewNodes, config.NumNodes, config.Consensus.K)
	case config.NumBlocks <= 0:
		return simulator.Config{}, fmt.Errorf("%w: %d", errNoBlocks, config.NumBlocks)
	case config.MaxRounds < 0:
		return simulator.Config{}, fmt.Errorf("%w: %d", errNegativeMaxRounds, config.MaxRounds)
	case config.PollsPerSecond < 0:
		return simulator.Config{}, fmt.Errorf("%w: %f", errInvalidPollRate, config.PollsPerSecond)
	case config.PollsPerSecond > 0 && config.PollBurst <= 0:
		return simulator.Config{}, fmt.Errorf("%w: %d", errInvalidPollBurst, config.PollBurst)
	case config.HealthCheckFreq <= 0:
		return simulator.Config{}, fmt.Errorf("%w: %s", errInvalidHealthFreq, config.HealthCheckFreq)
	}

	config.LoggingConfig, err = getLoggingConfig(v)
	if err != nil {
		return simulator.Config{}, err
	}

	config.TraceConfig, err = getTraceConfig(v)
	if err != nil {
		return simulator.Config{}, err
	}

	config.HTTPConfig, err = getHTTPConfig(v)
	if err != nil {
		return simulator.Config{}, err
	}
	return config, nil
}
