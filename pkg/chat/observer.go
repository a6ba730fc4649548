// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import "time"

// Observer receives engine events, on the engine's queue.
type Observer interface {
	LineReceived(line []byte)
	BufferOverflow()
	Matched(m Match)
	StepFinished(script string, step int, d time.Duration)
	ScriptFinished(script string, result Result, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) LineReceived([]byte)                          {}
func (nopObserver) BufferOverflow()                              {}
func (nopObserver) Matched(Match)                                {}
func (nopObserver) StepFinished(string, int, time.Duration)      {}
func (nopObserver) ScriptFinished(string, Result, time.Duration) {}

// Observers fans events out to several observers.
type Observers []Observer

func (o Observers) LineReceived(line []byte) {
	for _, ob := range o {
		ob.LineReceived(line)
	}
}

func (o Observers) BufferOverflow() {
	for _, ob := range o {
		ob.BufferOverflow()
	}
}

func (o Observers) Matched(m Match) {
	for _, ob := range o {
		ob.Matched(m)
	}
}

func (o Observers) StepFinished(script string, step int, d time.Duration) {
	for _, ob := range o {
		ob.StepFinished(script, step, d)
	}
}

func (o Observers) ScriptFinished(script string, result Result, d time.Duration) {
	for _, ob := range o {
		ob.ScriptFinished(script, result, d)
	}
}
