// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package chat

// Pipe is the byte stream an engine talks over.
//
// Send returns the number of bytes accepted. Zero bytes with a nil error
// means the pipe cannot take more right now and the engine retries later.
// Receive never blocks; it returns 0 when nothing is buffered.
// OnDataAvailable registers the function called whenever new bytes can be
// received; nil unregisters it.
type Pipe interface {
	Open() error
	Close() error
	Send(p []byte) (int, error)
	Receive(p []byte) (int, error)
	OnDataAvailable(fn func())
}
