// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"bytes"
	"errors"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		wantA byte
		wantB byte
	}{
		{"empty", nil, 0x00, 0x00},
		{"single byte", []byte{0x06}, 0x06, 0x06},
		{"cfg-rst header and payload", []byte{0x06, 0x04, 0x04, 0x00, 0xFF, 0xFF, 0x00, 0x00}, 0x0C, 0x5D},
		{"mon-ver poll", []byte{0x0A, 0x04, 0x00, 0x00}, 0x0E, 0x34},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := Checksum(tt.data)
			if a != tt.wantA || b != tt.wantB {
				t.Errorf("Checksum() = 0x%02X%02X, want 0x%02X%02X", a, b, tt.wantA, tt.wantB)
			}
		})
	}
}

func TestBuildFrame_KnownVectors(t *testing.T) {
	tests := []struct {
		name    string
		class   byte
		id      byte
		payload []byte
		want    []byte
	}{
		{
			name:    "port poll uart1",
			class:   ClassCFG,
			id:      IDCfgPrt,
			payload: []byte{PortUART1},
			want:    []byte{0xB5, 0x62, 0x06, 0x00, 0x01, 0x00, 0x01, 0x08, 0x22},
		},
		{
			name:    "ack-ack for cfg-rst",
			class:   ClassACK,
			id:      IDAckAck,
			payload: []byte{ClassCFG, IDCfgRst},
			want:    []byte{0xB5, 0x62, 0x05, 0x01, 0x02, 0x00, 0x06, 0x04, 0x12, 0x3B},
		},
		{
			name:    "zero length poll",
			class:   ClassMON,
			id:      IDMonVer,
			payload: nil,
			want:    []byte{0xB5, 0x62, 0x0A, 0x04, 0x00, 0x00, 0x0E, 0x34},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, MaxFrameLen)
			n, err := BuildFrame(dst, tt.class, tt.id, tt.payload)
			if err != nil {
				t.Fatalf("BuildFrame failed: %v", err)
			}
			if !bytes.Equal(dst[:n], tt.want) {
				t.Errorf("BuildFrame() = % X, want % X", dst[:n], tt.want)
			}
		})
	}
}

func TestBuildFrame_AllLengths(t *testing.T) {
	dst := make([]byte, MaxFrameLen)
	for size := 0; size <= MaxPayload; size++ {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}

		n, err := BuildFrame(dst, ClassNAV, IDNavPVT, payload)
		if err != nil {
			t.Fatalf("size %d: BuildFrame failed: %v", size, err)
		}
		if n != size+Overhead {
			t.Fatalf("size %d: length = %d, want %d", size, n, size+Overhead)
		}

		f := Frame(dst[:n])
		if err := f.Verify(); err != nil {
			t.Fatalf("size %d: Verify failed: %v", size, err)
		}
		if f.PayloadLen() != size {
			t.Errorf("size %d: PayloadLen = %d", size, f.PayloadLen())
		}
		if !bytes.Equal(f.Payload(), payload) {
			t.Errorf("size %d: payload mismatch", size)
		}
		a, b := Checksum(dst[2 : 6+size])
		gotA, gotB := f.Checksum()
		if a != gotA || b != gotB {
			t.Errorf("size %d: checksum mismatch", size)
		}
	}
}

func TestBuildFrame_PayloadTooLarge(t *testing.T) {
	dst := make([]byte, MaxFrameLen+16)
	for i := range dst {
		dst[i] = 0xAA
	}

	n, err := BuildFrame(dst, ClassCFG, IDCfgMsg, make([]byte, MaxPayload+1))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 bytes written, got %d", n)
	}
	for i, b := range dst {
		if b != 0xAA {
			t.Fatalf("dst modified at %d", i)
		}
	}
}

func TestBuildFrame_BufferTooSmall(t *testing.T) {
	dst := make([]byte, 8)
	_, err := BuildFrame(dst, ClassCFG, IDCfgPrt, []byte{1})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if !bytes.Equal(dst, make([]byte, 8)) {
		t.Error("dst modified on error")
	}
}

func TestFrame_Verify(t *testing.T) {
	good := MustNewFrame(ClassCFG, IDCfgPrt, []byte{PortUART1})

	tests := []struct {
		name    string
		mutate  func(f []byte) []byte
		wantErr bool
	}{
		{"valid", func(f []byte) []byte { return f }, false},
		{"short", func(f []byte) []byte { return f[:4] }, true},
		{"bad sync", func(f []byte) []byte { f[1] = 0x00; return f }, true},
		{"bad checksum", func(f []byte) []byte { f[len(f)-1] ^= 0xFF; return f }, true},
		{"truncated", func(f []byte) []byte { return f[:len(f)-1] }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := append([]byte(nil), good...)
			err := Frame(tt.mutate(f)).Verify()
			if (err != nil) != tt.wantErr {
				t.Errorf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustNewFrame_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustNewFrame should panic on oversized payload")
		}
	}()
	MustNewFrame(ClassCFG, IDCfgMsg, make([]byte, MaxPayload+1))
}

func TestFrame_Is(t *testing.T) {
	f := MustNewFrame(ClassACK, IDAckAck, []byte{ClassCFG, IDCfgMsg})
	if !f.Is(ClassACK, IDAckAck) {
		t.Error("expected ACK-ACK")
	}
	if f.Is(ClassACK, IDAckNak) {
		t.Error("did not expect ACK-NAK")
	}
	if !f.Acknowledges(ClassCFG, IDCfgMsg) {
		t.Error("expected acknowledgement of CFG-MSG")
	}
	if f.Acknowledges(ClassCFG, IDCfgRst) {
		t.Error("did not expect acknowledgement of CFG-RST")
	}
}
