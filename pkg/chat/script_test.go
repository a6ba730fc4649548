// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Err(t *testing.T) {
	assert.NoError(t, ResultSuccess.Err())
	assert.ErrorIs(t, ResultAbort.Err(), ErrAborted)
	assert.ErrorIs(t, ResultTimeout.Err(), ErrTimeout)
	assert.ErrorIs(t, ResultTransportFault.Err(), ErrTransportFault)
}

func TestScriptState_Terminal(t *testing.T) {
	for _, s := range []ScriptState{StateIdle, StateSendingRequest, StateAwaitingResponse, StateAdvancingStep} {
		assert.False(t, s.Terminal(), s.String())
	}
	for _, r := range []Result{ResultSuccess, ResultAbort, ResultTimeout, ResultTransportFault} {
		assert.True(t, terminalState(r).Terminal(), r.String())
	}
	assert.Equal(t, StateTimedOut, terminalState(ResultTimeout))
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "delay", StepDelay.String())
	assert.Equal(t, "transport_fault", ResultTransportFault.String())
	assert.Equal(t, "awaiting_response", StateAwaitingResponse.String())
	assert.Equal(t, "delimiter", SendDelimiter.String())
}
