// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

import "errors"

// Synchronous errors. These are returned directly to the caller and never
// reach a script callback.
var (
	ErrInvalidArgument = errors.New("chat: invalid argument")
	ErrBusy            = errors.New("chat: script already running")
	ErrNotAttached     = errors.New("chat: no pipe attached")
)

// ErrBufferOverflow is reported when a line does not fit the receive
// buffer. The buffer is reset and parsing continues.
var ErrBufferOverflow = errors.New("chat: receive buffer overflow")

// Terminal errors, see Result.Err.
var (
	ErrAborted        = errors.New("chat: script aborted")
	ErrTimeout        = errors.New("chat: script timed out")
	ErrTransportFault = errors.New("chat: transport fault")
)
