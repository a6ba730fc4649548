// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Thermoquad/ubxctl/pkg/chat"
	"github.com/Thermoquad/ubxctl/pkg/pipe"
)

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Observer records chat engine events. It implements chat.Observer.
type Observer struct {
	Lines       prometheus.Counter
	LineBytes   prometheus.Counter
	Overflows   prometheus.Counter
	Matches     *prometheus.CounterVec   // labels: role
	Scripts     *prometheus.CounterVec   // labels: script, result
	StepSeconds *prometheus.HistogramVec // labels: script
	RunSeconds  *prometheus.HistogramVec // labels: script
}

var _ chat.Observer = (*Observer)(nil)

// NewObserver registers and returns the engine metrics
func NewObserver(reg prometheus.Registerer) *Observer {
	o := &Observer{
		Lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ubxctl_lines_total",
			Help: "Lines received from the device.",
		}),
		LineBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ubxctl_line_bytes_total",
			Help: "Bytes in received lines, excluding delimiters.",
		}),
		Overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ubxctl_buffer_overflows_total",
			Help: "Lines dropped because the receive buffer filled.",
		}),
		Matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ubxctl_matches_total",
			Help: "Matched lines by role.",
		}, []string{"role"}),
		Scripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ubxctl_scripts_total",
			Help: "Finished scripts by result.",
		}, []string{"script", "result"}),
		StepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ubxctl_step_duration_seconds",
			Help:    "Time from step start to completion.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"script"}),
		RunSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ubxctl_script_duration_seconds",
			Help:    "Time from script start to its result.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"script"}),
	}
	reg.MustRegister(o.Lines, o.LineBytes, o.Overflows, o.Matches, o.Scripts, o.StepSeconds, o.RunSeconds)
	return o
}

func (o *Observer) LineReceived(line []byte) {
	o.Lines.Inc()
	o.LineBytes.Add(float64(len(line)))
}

func (o *Observer) BufferOverflow() {
	o.Overflows.Inc()
}

func (o *Observer) Matched(m chat.Match) {
	o.Matches.WithLabelValues(m.Role.String()).Inc()
}

func (o *Observer) StepFinished(script string, _ int, d time.Duration) {
	o.StepSeconds.WithLabelValues(script).Observe(d.Seconds())
}

func (o *Observer) ScriptFinished(script string, result chat.Result, d time.Duration) {
	o.Scripts.WithLabelValues(script, result.String()).Inc()
	o.RunSeconds.WithLabelValues(script).Observe(d.Seconds())
}

// TrafficTap counts bytes crossing a pipe. It implements pipe.Tap.
type TrafficTap struct {
	Bytes *prometheus.CounterVec // labels: direction
}

var _ pipe.Tap = (*TrafficTap)(nil)

// NewTrafficTap registers and returns the pipe traffic counter
func NewTrafficTap(reg prometheus.Registerer) *TrafficTap {
	t := &TrafficTap{
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ubxctl_pipe_bytes_total",
			Help: "Bytes received from and sent to the device.",
		}, []string{"direction"}),
	}
	reg.MustRegister(t.Bytes)
	return t
}

func (t *TrafficTap) Received(p []byte) {
	t.Bytes.WithLabelValues("rx").Add(float64(len(p)))
}

func (t *TrafficTap) Sent(p []byte) {
	t.Bytes.WithLabelValues("tx").Add(float64(len(p)))
}

// Serve exposes reg on addr under path until ctx ends
func Serve(ctx context.Context, addr, path string, reg *prometheus.Registry, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", zap.String("addr", addr), zap.String("path", path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
