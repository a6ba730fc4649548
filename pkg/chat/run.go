// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// run is the executor state of one script. It is only touched on the
// engine's queue.
type run struct {
	script *Script
	id     uuid.UUID
	gen    uint64
	step   int
	state  ScriptState

	send        SendState
	sendPos     int
	sendStarted time.Time

	started     time.Time
	stepStarted time.Time

	scriptTimer Task
	stepTimer   Task
	sendTimer   Task

	done chan struct{}
}

func (r *run) fields() []zap.Field {
	return []zap.Field{
		zap.String("script", r.script.Name),
		zap.String("run", r.id.String()),
		zap.Int("step", r.step),
		zap.Stringer("state", r.state),
	}
}

// ticket identifies the step a deferred call was scheduled for. Calls
// whose ticket no longer matches the running script are stale and dropped.
type ticket struct {
	gen  uint64
	step int
}

func (r *run) ticket() ticket {
	return ticket{gen: r.gen, step: r.step}
}

// current returns the run t was issued for, or nil if t is stale.
func (e *Engine) current(t ticket) *run {
	r := e.cur
	if r == nil || r.gen != t.gen || r.step != t.step || r.state.Terminal() {
		return nil
	}
	return r
}

func (e *Engine) begin(r *run) {
	e.cur = r
	r.started = e.sched.Now()
	e.log.Info("script started", append(r.fields(), zap.Int("steps", len(r.script.Steps)))...)

	if r.script.Timeout > 0 {
		gen := r.gen
		r.scriptTimer = e.sched.After(r.script.Timeout, func() {
			e.onScriptTimeout(gen)
		})
	}
	e.startStep()
}

func (e *Engine) startStep() {
	r := e.cur
	step := r.script.Steps[r.step]
	r.state = StateSendingRequest
	r.stepStarted = e.sched.Now()
	e.log.Debug("step started", append(r.fields(), zap.Stringer("kind", step.Kind))...)

	if len(step.Request) == 0 {
		e.requestSent()
		return
	}
	r.send = SendRequest
	r.sendPos = 0
	r.sendStarted = r.stepStarted
	e.sendNext()
}

// requestSent moves the step on once its request is written.
func (e *Engine) requestSent() {
	r := e.cur
	step := r.script.Steps[r.step]
	r.send = SendIdle

	switch step.Kind {
	case StepSend:
		e.advance()
	case StepDelay, StepExpect:
		r.state = StateAwaitingResponse
		if step.Timeout > 0 {
			t := r.ticket()
			r.stepTimer = e.sched.After(step.Timeout, func() {
				e.onStepTimer(t)
			})
		}
	}
}

func (e *Engine) onStepTimer(t ticket) {
	e.handleAbortRequest()
	r := e.current(t)
	if r == nil || r.state != StateAwaitingResponse {
		return
	}
	r.stepTimer = nil
	if r.script.Steps[r.step].Kind == StepDelay {
		e.advance()
		return
	}
	e.log.Warn("step timed out", r.fields()...)
	e.finish(ResultTimeout)
}

func (e *Engine) onScriptTimeout(gen uint64) {
	e.handleAbortRequest()
	r := e.cur
	if r == nil || r.gen != gen || r.state.Terminal() {
		return
	}
	r.scriptTimer = nil
	e.log.Warn("script timed out", r.fields()...)
	e.finish(ResultTimeout)
}

// advance completes the current step. The next step starts from a fresh
// queue task.
func (e *Engine) advance() {
	r := e.cur
	r.state = StateAdvancingStep
	cancelTask(&r.stepTimer)
	e.observer.StepFinished(r.script.Name, r.step, e.sched.Now().Sub(r.stepStarted))

	t := r.ticket()
	e.sched.Submit(func() {
		e.nextStep(t)
	})
}

func (e *Engine) nextStep(t ticket) {
	e.handleAbortRequest()
	r := e.current(t)
	if r == nil || r.state != StateAdvancingStep {
		return
	}
	r.step++
	if r.step == len(r.script.Steps) {
		e.finish(ResultSuccess)
		return
	}
	e.startStep()
}

// finish ends the run, invokes the script callback and returns the
// engine to idle.
func (e *Engine) finish(result Result) {
	r := e.cur
	r.state = terminalState(result)
	r.send = SendIdle
	cancelTask(&r.scriptTimer)
	cancelTask(&r.stepTimer)
	cancelTask(&r.sendTimer)

	elapsed := e.sched.Now().Sub(r.started)
	fields := append(r.fields(), zap.Stringer("result", result), zap.Duration("elapsed", elapsed))
	if result == ResultSuccess {
		e.log.Info("script finished", fields...)
	} else {
		e.log.Warn("script finished", fields...)
	}
	e.observer.ScriptFinished(r.script.Name, result, elapsed)

	r.script.Callback(result)

	e.cur = nil
	e.activeGen.CompareAndSwap(r.gen, 0)
	e.busy.Store(false)
	close(r.done)
}

func cancelTask(t *Task) {
	if *t != nil {
		(*t).Cancel()
		*t = nil
	}
}
