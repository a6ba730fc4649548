// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyLengthMismatch AnomalyType = iota
	AnomalyInvalidValue
	AnomalyChecksumError
	AnomalyDecodeError
)

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// fixedSizes lists messages whose payload length is fixed
var fixedSizes = map[[2]byte]int{
	{ClassACK, IDAckAck}: AckPayloadSize,
	{ClassACK, IDAckNak}: AckPayloadSize,
	{ClassCFG, IDCfgRst}: CfgRstPayloadSize,
	{ClassCFG, IDCfgMsg}: CfgMsgPayloadSize,
}

// ValidateFrame checks payload lengths and field values of known messages.
// Returns a slice of validation errors (empty if the frame is valid).
func ValidateFrame(f Frame) []ValidationError {
	errors := []ValidationError{}
	class, id, n := f.Class(), f.ID(), f.PayloadLen()

	if want, ok := fixedSizes[[2]byte{class, id}]; ok && n != want {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s payload length mismatch (expected %d bytes)", FormatMessageType(class, id), want),
			Details: map[string]interface{}{"length": n, "expected": want},
		}}
	}

	switch {
	case class == ClassCFG && id == IDCfgPrt:
		if n != CfgPrtPollPayloadSize && n != CfgPrtSetPayloadSize {
			errors = append(errors, ValidationError{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("CFG-PRT payload length mismatch (expected %d or %d bytes)", CfgPrtPollPayloadSize, CfgPrtSetPayloadSize),
				Details: map[string]interface{}{"length": n},
			})
		}

	case class == ClassCFG && id == IDCfgNav5:
		// A zero-length CFG-NAV5 is a poll
		if n != 0 && n != CfgNav5PayloadSize {
			errors = append(errors, ValidationError{
				Type:    AnomalyLengthMismatch,
				Message: fmt.Sprintf("CFG-NAV5 payload length mismatch (expected %d bytes)", CfgNav5PayloadSize),
				Details: map[string]interface{}{"length": n, "expected": CfgNav5PayloadSize},
			})
		}

	case class == ClassCFG && id == IDCfgGNSS && n != 0:
		errors = append(errors, validateGNSS(f.Payload())...)

	case class == ClassCFG && id == IDCfgRst:
		mode := ResetMode(f.Payload()[2])
		if formatResetMode(mode) == "UNKNOWN" {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Message: fmt.Sprintf("Invalid reset mode=0x%02X", uint8(mode)),
				Details: map[string]interface{}{"reset_mode": uint8(mode)},
			})
		}
	}

	return errors
}

// validateGNSS checks that the block count matches the payload length
func validateGNSS(p []byte) []ValidationError {
	if len(p) < CfgGNSSHeaderSize {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("CFG-GNSS payload too short (expected at least %d bytes)", CfgGNSSHeaderSize),
			Details: map[string]interface{}{"length": len(p), "minimum": CfgGNSSHeaderSize},
		}}
	}
	blocks := int(p[3])
	want := CfgGNSSHeaderSize + blocks*CfgGNSSBlockSize
	if len(p) != want {
		return []ValidationError{{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("CFG-GNSS has %d blocks but %d payload bytes (expected %d)", blocks, len(p), want),
			Details: map[string]interface{}{"blocks": blocks, "length": len(p), "expected": want},
		}}
	}
	return nil
}

// Ack is a decoded ACK-ACK or ACK-NAK.
type Ack struct {
	Class byte
	ID    byte
	Nak   bool
}

// ParseAck decodes an acknowledgement frame.
func ParseAck(f Frame) (Ack, error) {
	if f.Class() != ClassACK || (f.ID() != IDAckAck && f.ID() != IDAckNak) {
		return Ack{}, fmt.Errorf("not an acknowledgement: %s", FormatMessageType(f.Class(), f.ID()))
	}
	p := f.Payload()
	if len(p) != AckPayloadSize {
		return Ack{}, fmt.Errorf("ACK payload is %d bytes (expected %d)", len(p), AckPayloadSize)
	}
	return Ack{Class: p[0], ID: p[1], Nak: f.ID() == IDAckNak}, nil
}

// Acknowledges reports whether f is an ACK-ACK for class/id.
func (f Frame) Acknowledges(class, id byte) bool {
	ack, err := ParseAck(f)
	return err == nil && !ack.Nak && ack.Class == class && ack.ID == id
}
