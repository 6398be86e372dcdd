// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"time"

	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowball"
	"github.com/ava-labs/avalanche-consensus/trace"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
)

type HTTPConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host" yaml:"host"`
	Port    uint16 `json:"port" yaml:"port"`

	AllowedOrigins []string `json:"allowedOrigins" yaml:"allowedOrigins"`

	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`

	// KeepServing keeps the server running after every node finalized.
	KeepServing bool `json:"keepServing" yaml:"keepServing"`
}

type Config struct {
	Consensus snowball.Parameters `json:"consensusParameters" yaml:"consensusParameters"`

	LoggingConfig logging.Config `json:"loggingConfig" yaml:"-"`
	TraceConfig   trace.Config   `json:"traceConfig" yaml:"traceConfig"`
	HTTPConfig    HTTPConfig     `json:"httpConfig" yaml:"httpConfig"`

	NumNodes  int   `json:"numNodes" yaml:"numNodes"`
	NumBlocks int   `json:"numBlocks" yaml:"numBlocks"`
	Seed      int64 `json:"seed" yaml:"seed"`

	// MaxRounds bounds the number of polls applied. 0 means unlimited.
	MaxRounds int `json:"maxRounds" yaml:"maxRounds"`

	// PollsPerSecond limits the poll rate. 0 means unlimited.
	PollsPerSecond float64 `json:"pollsPerSecond" yaml:"pollsPerSecond"`
	PollBurst      int     `json:"pollBurst" yaml:"pollBurst"`

	HealthCheckFreq time.Duration `json:"healthCheckFrequency" yaml:"healthCheckFrequency"`
}
