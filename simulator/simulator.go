// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ava-labs/avalanche-consensus/api/health"
	"github.com/ava-labs/avalanche-consensus/api/metrics"
	"github.com/ava-labs/avalanche-consensus/app"
	"github.com/ava-labs/avalanche-consensus/trace"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
	"github.com/ava-labs/avalanche-consensus/utils/wrappers"
)

const healthNamespace = "health"

var (
	_ app.App = (*Simulator)(nil)

	errDisagreement = errors.New("finalized nodes disagree")
	errNotStarted   = errors.New("simulator not started")
)

// Simulator runs a Network to completion, optionally serving its state over
// HTTP, and writes a YAML report once every node has finalized.
type Simulator struct {
	config       Config
	log          logging.Logger
	tracer       trace.Tracer
	network      *Network
	health       health.Health
	server       *server
	limiter      *rate.Limiter
	reportWriter io.Writer

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	err      error
}

func New(config Config, log logging.Logger, reportWriter io.Writer) (*Simulator, error) {
	tracer, err := trace.New(config.TraceConfig)
	if err != nil {
		return nil, err
	}

	s, err := newSimulator(config, log, tracer, reportWriter)
	if err != nil {
		_ = tracer.Close()
		return nil, err
	}
	return s, nil
}

func newSimulator(config Config, log logging.Logger, tracer trace.Tracer, reportWriter io.Writer) (*Simulator, error) {
	var (
		registry     = prometheus.NewRegistry()
		nodeGatherer = metrics.NewPrefixGatherer()
	)
	network, err := NewNetwork(
		context.Background(),
		config,
		log,
		tracer,
		registry,
		nodeGatherer,
	)
	if err != nil {
		return nil, err
	}

	h, err := health.New(log, healthNamespace, registry)
	if err != nil {
		return nil, err
	}
	if err := network.RegisterHealthChecks(h); err != nil {
		return nil, err
	}

	s := &Simulator{
		config:       config,
		log:          log,
		tracer:       tracer,
		network:      network,
		health:       h,
		reportWriter: reportWriter,
		done:         make(chan struct{}),
	}
	if config.PollsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.PollsPerSecond), config.PollBurst)
	}

	if !config.HTTPConfig.Enabled {
		return s, nil
	}

	handler, err := newRouter(
		&handlers{
			log:      log,
			config:   config,
			network:  network,
			health:   h,
			gatherer: prometheus.Gatherers{registry, nodeGatherer},
			start:    time.Now(),
		},
		config.HTTPConfig.AllowedOrigins,
		registry,
	)
	if err != nil {
		return nil, err
	}
	s.server, err = newServer(log, config.HTTPConfig, handler)
	return s, err
}

// Network returns the simulated network.
func (s *Simulator) Network() *Network {
	return s.network
}

// HTTPAddr returns the address the HTTP server is listening on, or nil if HTTP
// is disabled.
func (s *Simulator) HTTPAddr() net.Addr {
	if s.server == nil {
		return nil
	}
	return s.server.Addr()
}

func (s *Simulator) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.health.Start(ctx, s.config.HealthCheckFreq)

	eg, ctx := errgroup.WithContext(ctx)
	if s.server != nil {
		eg.Go(s.server.Dispatch)
	}
	eg.Go(func() error {
		if s.server != nil {
			defer func() {
				if err := s.server.Shutdown(); err != nil {
					s.log.Warn("failed to shut down HTTP server",
						zap.Error(err),
					)
				}
			}()
		}

		if err := s.run(ctx); err != nil {
			return err
		}
		if s.server != nil && s.config.HTTPConfig.KeepServing {
			s.log.Info("simulation finished, serving until interrupted")
			<-ctx.Done()
		}
		return nil
	})

	go func() {
		s.err = eg.Wait()
		close(s.done)
	}()
	return nil
}

func (s *Simulator) run(ctx context.Context) error {
	start := time.Now()
	runErr := s.network.Run(ctx, s.limiter, s.config.MaxRounds)
	report := NewReport(s.config, s.network, time.Since(start), true)

	errs := wrappers.Errs{}
	errs.Add(runErr)
	if s.reportWriter != nil {
		errs.Add(report.WriteYAML(s.reportWriter))
	}
	if report.Finalized && !report.Agreement {
		errs.Add(errDisagreement)
	}
	return errs.Err
}

func (s *Simulator) Stop() error {
	if s.cancel == nil {
		return errNotStarted
	}
	s.cancel()
	return nil
}

func (s *Simulator) ExitCode() (int, error) {
	if s.cancel == nil {
		return app.ExitCodeFailure, errNotStarted
	}

	<-s.done
	s.stopOnce.Do(func() {
		s.cancel()
		s.health.Stop()
		if err := s.tracer.Close(); err != nil {
			s.log.Warn("failed to close tracer",
				zap.Error(err),
			)
		}
	})

	if s.err != nil {
		s.log.Error("simulation failed",
			zap.Error(s.err),
		)
		return app.ExitCodeFailure, s.err
	}
	return app.ExitCodeSuccess, nil
}
