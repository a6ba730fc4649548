// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// TestFuzzDecoder_RandomBytes feeds random bytes to the decoder
// and verifies it doesn't crash or panic
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder()
		data := make([]byte, rng.Intn(1024)+1)
		rng.Read(data)
		for _, b := range data {
			d.DecodeByte(b)
		}
	}
}

// TestFuzzFrame_RoundTrip builds random frames and decodes them back
func TestFuzzFrame_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	dst := make([]byte, MaxFrameLen)
	for i := 0; i < rounds; i++ {
		class := byte(rng.Intn(256))
		id := byte(rng.Intn(256))
		payload := make([]byte, rng.Intn(MaxPayload+1))
		rng.Read(payload)

		n, err := BuildFrame(dst, class, id, payload)
		if err != nil {
			t.Fatalf("Round %d: BuildFrame failed: %v", i, err)
		}

		d := NewDecoder()
		var got Frame
		for _, b := range dst[:n] {
			f, err := d.DecodeByte(b)
			if err != nil {
				t.Fatalf("Round %d: unexpected decode error: %v", i, err)
			}
			if f != nil {
				got = f
			}
		}
		if got == nil {
			t.Fatalf("Round %d: expected frame, got nil", i)
		}
		if got.Class() != class || got.ID() != id {
			t.Errorf("Round %d: header mismatch", i)
		}
		if !bytes.Equal(got.Payload(), payload) {
			t.Errorf("Round %d: payload mismatch", i)
		}
	}
}

// TestFuzzDecoder_CorruptedFrames flips one byte past the sync characters
// and checks the corrupted frame is never reported as valid with the
// original content
func TestFuzzDecoder_CorruptedFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		payload := make([]byte, rng.Intn(64))
		rng.Read(payload)
		frame := []byte(MustNewFrame(byte(rng.Intn(256)), byte(rng.Intn(256)), payload))

		idx := rng.Intn(len(frame)-2) + 2
		frame[idx] ^= byte(rng.Intn(255) + 1)

		d := NewDecoder()
		for _, b := range frame {
			f, _ := d.DecodeByte(b)
			if f != nil && Frame(f).Verify() != nil {
				t.Fatalf("Round %d: decoder returned a frame that does not verify", i)
			}
		}
	}
}
