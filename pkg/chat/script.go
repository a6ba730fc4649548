// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"fmt"
	"time"
)

// StepKind selects how a step completes.
type StepKind int

const (
	// StepExpect waits for a non-partial response match. A non-zero
	// Timeout bounds the wait and fails the script when it elapses.
	StepExpect StepKind = iota
	// StepDelay waits for Timeout and then continues. No responses.
	StepDelay
	// StepSend completes as soon as the request is sent.
	StepSend
)

func (k StepKind) String() string {
	switch k {
	case StepExpect:
		return "expect"
	case StepDelay:
		return "delay"
	case StepSend:
		return "send"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one request and what should follow it. An empty Request sends
// nothing, not even the delimiter.
type Step struct {
	Kind      StepKind
	Request   []byte
	Responses []MatchPattern
	Timeout   time.Duration
}

// Expect sends request and waits for one of responses.
func Expect(request []byte, responses ...MatchPattern) Step {
	return Step{Kind: StepExpect, Request: request, Responses: responses}
}

// ExpectWithin is Expect with a step timeout.
func ExpectWithin(request []byte, timeout time.Duration, responses ...MatchPattern) Step {
	return Step{Kind: StepExpect, Request: request, Responses: responses, Timeout: timeout}
}

// Delay sends request (if any) and continues after d.
func Delay(request []byte, d time.Duration) Step {
	return Step{Kind: StepDelay, Request: request, Timeout: d}
}

// Send sends request and continues immediately.
func Send(request []byte) Step {
	return Step{Kind: StepSend, Request: request}
}

func (s Step) validate() error {
	switch s.Kind {
	case StepExpect:
		if len(s.Responses) == 0 {
			return fmt.Errorf("expect step without responses")
		}
		if s.Timeout < 0 {
			return fmt.Errorf("negative step timeout %s", s.Timeout)
		}
	case StepDelay:
		if len(s.Responses) != 0 {
			return fmt.Errorf("delay step with %d responses", len(s.Responses))
		}
		if s.Timeout <= 0 {
			return fmt.Errorf("delay step needs a positive timeout")
		}
	case StepSend:
		if len(s.Responses) != 0 {
			return fmt.Errorf("send step with %d responses", len(s.Responses))
		}
		if s.Timeout != 0 {
			return fmt.Errorf("send step with timeout %s", s.Timeout)
		}
		if len(s.Request) == 0 {
			return fmt.Errorf("send step without request")
		}
	default:
		return fmt.Errorf("unknown step kind %d", int(s.Kind))
	}
	return nil
}

// Script is an ordered list of steps run as one operation.
type Script struct {
	Name         string
	Steps        []Step
	AbortMatches []MatchPattern
	// Timeout bounds the whole script. Zero disables it.
	Timeout  time.Duration
	Callback func(Result)
}

// Validate checks the script shape.
func (s *Script) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil script", ErrInvalidArgument)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: script %q has no steps", ErrInvalidArgument, s.Name)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: script %q has negative timeout", ErrInvalidArgument, s.Name)
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w: script %q step %d: %v", ErrInvalidArgument, s.Name, i, err)
		}
	}
	return nil
}

// Result is the terminal outcome of a script run.
type Result int

const (
	ResultSuccess Result = iota
	ResultAbort
	ResultTimeout
	ResultTransportFault
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultAbort:
		return "abort"
	case ResultTimeout:
		return "timeout"
	case ResultTransportFault:
		return "transport_fault"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Err maps the result to nil or one of ErrAborted, ErrTimeout and
// ErrTransportFault.
func (r Result) Err() error {
	switch r {
	case ResultSuccess:
		return nil
	case ResultAbort:
		return ErrAborted
	case ResultTimeout:
		return ErrTimeout
	default:
		return ErrTransportFault
	}
}

// ScriptState is the executor state of a run.
type ScriptState int

const (
	StateIdle ScriptState = iota
	StateSendingRequest
	StateAwaitingResponse
	StateAdvancingStep
	StateCompleted
	StateAborted
	StateTimedOut
	StateTransportFault
)

func (s ScriptState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSendingRequest:
		return "sending_request"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateAdvancingStep:
		return "advancing_step"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateTimedOut:
		return "timed_out"
	case StateTransportFault:
		return "transport_fault"
	default:
		return fmt.Sprintf("ScriptState(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s ScriptState) Terminal() bool {
	return s >= StateCompleted
}

func terminalState(r Result) ScriptState {
	switch r {
	case ResultSuccess:
		return StateCompleted
	case ResultAbort:
		return StateAborted
	case ResultTimeout:
		return StateTimedOut
	default:
		return StateTransportFault
	}
}

// SendState tracks which part of a request is being written.
type SendState int

const (
	SendIdle SendState = iota
	SendRequest
	SendDelimiter
)

func (s SendState) String() string {
	switch s {
	case SendIdle:
		return "idle"
	case SendRequest:
		return "request"
	case SendDelimiter:
		return "delimiter"
	default:
		return fmt.Sprintf("SendState(%d)", int(s))
	}
}
