// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowball"
)

// Report summarizes a finished simulation.
type Report struct {
	Parameters snowball.Parameters `json:"parameters" yaml:"parameters"`
	Seed       int64               `json:"seed" yaml:"seed"`
	NumNodes   int                 `json:"numNodes" yaml:"numNodes"`
	NumBlocks  int                 `json:"numBlocks" yaml:"numBlocks"`
	GenesisID  ids.ID              `json:"genesisID" yaml:"genesisID"`

	Rounds    int           `json:"rounds" yaml:"rounds"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Finalized bool          `json:"finalized" yaml:"finalized"`
	Agreement bool          `json:"agreement" yaml:"agreement"`

	// Preferences counts the nodes preferring each block.
	Preferences map[ids.ID]int `json:"preferences" yaml:"preferences"`
	Nodes       []NodeStatus   `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// NewReport snapshots [n]. Per-node statuses are only included when
// [includeNodes] is set.
func NewReport(config Config, n *Network, duration time.Duration, includeNodes bool) *Report {
	statuses := n.Statuses()
	preferences := make(map[ids.ID]int)
	for _, status := range statuses {
		preferences[status.Preference]++
	}

	r := &Report{
		Parameters:  config.Consensus,
		Seed:        config.Seed,
		NumNodes:    config.NumNodes,
		NumBlocks:   config.NumBlocks,
		GenesisID:   n.GenesisID(),
		Rounds:      n.Rounds(),
		Duration:    duration,
		Finalized:   n.Finalized(),
		Agreement:   len(preferences) <= 1,
		Preferences: preferences,
	}
	if includeNodes {
		r.Nodes = statuses
	}
	return r
}

// WriteYAML encodes the report to [w].
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
