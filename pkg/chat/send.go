// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import "go.uber.org/zap"

// pending returns the unsent part of the request or delimiter.
func (e *Engine) pending(r *run) []byte {
	switch r.send {
	case SendRequest:
		return r.script.Steps[r.step].Request[r.sendPos:]
	case SendDelimiter:
		return e.cfg.Delimiter[r.sendPos:]
	default:
		return nil
	}
}

// nextSendState moves past a fully written part.
func (e *Engine) nextSendState(r *run) {
	r.sendPos = 0
	if r.send == SendRequest && e.cfg.SendDelimiter {
		r.send = SendDelimiter
		return
	}
	r.send = SendIdle
}

// sendNext writes as much of the request as the pipe accepts. Short
// writes continue at once; a write of zero bytes retries after
// SendRetryDelay until SendTimeout has passed since the first attempt.
func (e *Engine) sendNext() {
	r := e.cur
	a := e.pipe.Load()
	if a == nil {
		e.log.Warn("send failed: no pipe attached", r.fields()...)
		e.finish(ResultTransportFault)
		return
	}

	for r.send != SendIdle {
		data := e.pending(r)
		if len(data) == 0 {
			e.nextSendState(r)
			continue
		}

		n, err := a.pipe.Send(data)
		if err != nil {
			e.log.Warn("send failed", append(r.fields(), zap.Error(err))...)
			e.finish(ResultTransportFault)
			return
		}
		if n > 0 {
			r.sendPos += min(n, len(data))
			continue
		}

		if e.sched.Now().Sub(r.sendStarted) >= e.cfg.SendTimeout {
			e.log.Warn("send timed out",
				append(r.fields(), zap.Stringer("send_state", r.send), zap.Duration("timeout", e.cfg.SendTimeout))...)
			e.finish(ResultTransportFault)
			return
		}
		t := r.ticket()
		r.sendTimer = e.sched.After(e.cfg.SendRetryDelay, func() {
			e.onSendRetry(t)
		})
		return
	}

	e.requestSent()
}

func (e *Engine) onSendRetry(t ticket) {
	e.handleAbortRequest()
	r := e.current(t)
	if r == nil || r.state != StateSendingRequest {
		return
	}
	r.sendTimer = nil
	e.sendNext()
}
