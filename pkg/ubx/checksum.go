// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

// Checksum computes the UBX 8-bit Fletcher checksum pair over data.
// For a frame, data is everything from the class byte to the last payload
// byte.
func Checksum(data []byte) (a, b byte) {
	for _, c := range data {
		a += c
		b += a
	}
	return a, b
}
