// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	GRPC ExporterType = "grpc"
	HTTP ExporterType = "http"

	tracerExportTimeout = 10 * time.Second
)

var errUnknownExporterType = errors.New("unknown exporter type")

// ExporterType is the OTLP transport spans are shipped over.
type ExporterType string

// ParseExporterType parses the value of the tracing exporter flag. Matching is
// case-insensitive.
func ParseExporterType(s string) (ExporterType, error) {
	switch t := ExporterType(strings.ToLower(s)); t {
	case GRPC, HTTP:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownExporterType, s)
	}
}

func (t ExporterType) String() string {
	return string(t)
}

func (t *ExporterType) UnmarshalText(text []byte) error {
	exporterType, err := ParseExporterType(string(text))
	if err != nil {
		return err
	}
	*t = exporterType
	return nil
}

type ExporterConfig struct {
	Type ExporterType `json:"type" yaml:"type"`

	// Endpoint to send spans to
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Headers to send with every export
	Headers map[string]string `json:"headers" yaml:"headers"`

	// If true, don't use TLS
	Insecure bool `json:"insecure" yaml:"insecure"`
}

func newExporter(config ExporterConfig) (sdktrace.SpanExporter, error) {
	var client otlptrace.Client
	switch config.Type {
	case GRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithHeaders(config.Headers),
			otlptracegrpc.WithTimeout(tracerExportTimeout),
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		client = otlptracegrpc.NewClient(opts...)
	case HTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithHeaders(config.Headers),
			otlptracehttp.WithTimeout(tracerExportTimeout),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		client = otlptracehttp.NewClient(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownExporterType, config.Type)
	}

	return otlptrace.New(context.Background(), client)
}
