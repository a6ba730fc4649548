// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ubx implements the u-blox UBX binary frame format.
//
// A UBX frame is two sync characters, a message class and id, a
// little-endian payload length, the payload and a two byte Fletcher
// checksum computed over class..payload. This package builds frames into
// caller-owned buffers, provides payload builders for the configuration
// messages used to bring up a receiver, and decodes frames from a raw byte
// stream.
package ubx

import "time"

// Frame sync characters
const (
	SyncChar1 = 0xB5
	SyncChar2 = 0x62
)

// Frame layout
const (
	HeaderSize  = 6
	FooterSize  = 2
	Overhead    = HeaderSize + FooterSize
	MaxPayload  = 256
	MaxFrameLen = MaxPayload + Overhead

	idxSync1      = 0
	idxSync2      = 1
	idxClass      = 2
	idxID         = 3
	idxLenLow     = 4
	idxLenHigh    = 5
	idxPayload    = 6
	checksumStart = idxClass
)

// ResetSettleTime is how long a receiver needs after CFG-RST before it
// accepts commands again.
const ResetSettleTime = 8000 * time.Millisecond

// Message classes
const (
	ClassNAV  = 0x01
	ClassRXM  = 0x02
	ClassINF  = 0x04
	ClassACK  = 0x05
	ClassCFG  = 0x06
	ClassUPD  = 0x09
	ClassMON  = 0x0A
	ClassAID  = 0x0B
	ClassTIM  = 0x0D
	ClassESF  = 0x10
	ClassMGA  = 0x13
	ClassLOG  = 0x21
	ClassSEC  = 0x27
	ClassHNR  = 0x28
	ClassNMEA = 0xF0
	ClassPUBX = 0xF1
)

// ACK message ids
const (
	IDAckNak = 0x00
	IDAckAck = 0x01
)

// CFG message ids
const (
	IDCfgPrt  = 0x00
	IDCfgMsg  = 0x01
	IDCfgInf  = 0x02
	IDCfgRst  = 0x04
	IDCfgRate = 0x08
	IDCfgCfg  = 0x09
	IDCfgNav5 = 0x24
	IDCfgGNSS = 0x3E
)

// NAV and MON message ids
const (
	IDNavPosLLH = 0x02
	IDNavStatus = 0x03
	IDNavSat    = 0x35
	IDNavPVT    = 0x07
	IDMonVer    = 0x04
	IDMonHW     = 0x09
)

// Standard NMEA message ids (class 0xF0), used with CFG-MSG to change
// sentence output rates.
const (
	IDNmeaGGA = 0x00
	IDNmeaGLL = 0x01
	IDNmeaGSA = 0x02
	IDNmeaGSV = 0x03
	IDNmeaRMC = 0x04
	IDNmeaVTG = 0x05
)

// Payload sizes of the configuration messages built by this package
const (
	CfgPrtPollPayloadSize   = 1
	CfgPrtSetPayloadSize    = 20
	CfgRstPayloadSize       = 4
	CfgNav5PayloadSize      = 36
	CfgMsgPayloadSize       = 3
	CfgGNSSHeaderSize       = 4
	CfgGNSSBlockSize        = 8
	AckPayloadSize          = 2
	maxGNSSBlocks           = (MaxPayload - CfgGNSSHeaderSize) / CfgGNSSBlockSize
	cfgGNSSDefaultTrkChHW   = 0x31
	cfgGNSSDefaultTrkChUse  = 0x31
	cfgGNSSDefaultMsgVer    = 0x00
	cfgMsgDefaultRate       = 1
	cfgNav5DefaultMask      = 0x05FF
	cfgNav5DefaultAltVar    = 10000
	cfgNav5DefaultMinElev   = 5
	cfgNav5DefaultDOP       = 250
	cfgNav5DefaultPAcc      = 100
	cfgNav5DefaultTAcc      = 300
	cfgNav5DefaultDGNSSTout = 60
)

// FrameSize returns the on-wire size of a frame carrying n payload bytes.
func FrameSize(n int) int {
	return n + Overhead
}

// Port identifiers for CFG-PRT
const (
	PortDDC   = 0
	PortUART1 = 1
	PortUART2 = 2
	PortUSB   = 3
	PortSPI   = 4
)

// CFG-PRT protocol masks
const (
	InProtoUBX   = 1 << 0
	InProtoNMEA  = 1 << 1
	InProtoRTCM  = 1 << 2
	InProtoRTCM3 = 1 << 5

	OutProtoUBX   = 1 << 0
	OutProtoNMEA  = 1 << 1
	OutProtoRTCM3 = 1 << 5
)

// CFG-PRT UART mode bits
const (
	ModeCharLen5 = 0
	ModeCharLen6 = 1 << 6
	ModeCharLen7 = 1 << 7
	ModeCharLen8 = 1<<6 | 1<<7

	ModeParityEven = 0
	ModeParityOdd  = 1 << 9
	ModeParityNone = 1 << 11

	ModeStopBits1     = 0
	ModeStopBits1Half = 1 << 12
	ModeStopBits2     = 1 << 13
	ModeStopBitsHalf  = 1<<12 | 1<<13
)

// Baudrates lists the UART rates the receivers accept, slowest first.
var Baudrates = [...]uint32{4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800}

// DefaultBaudrate is the factory UART1 rate.
const DefaultBaudrate = 9600

// NavBbrMask selects which battery-backed RAM sections CFG-RST clears.
type NavBbrMask uint16

const (
	NavBbrHotStart  NavBbrMask = 0x0000
	NavBbrWarmStart NavBbrMask = 0x0001
	NavBbrColdStart NavBbrMask = 0xFFFF
)

// ResetMode is the CFG-RST reset type.
type ResetMode uint8

const (
	ResetHardware               ResetMode = 0x00
	ResetControlledSoftware     ResetMode = 0x01
	ResetControlledSoftwareGNSS ResetMode = 0x02
	ResetHardwareAfterShutdown  ResetMode = 0x04
	ResetControlledGNSSStop     ResetMode = 0x08
	ResetControlledGNSSStart    ResetMode = 0x09
)

// DynModel is the CFG-NAV5 dynamic platform model.
type DynModel uint8

const (
	DynPortable   DynModel = 0
	DynStationary DynModel = 2
	DynPedestrian DynModel = 3
	DynAutomotive DynModel = 4
	DynSea        DynModel = 5
	DynAirborne1G DynModel = 6
	DynAirborne2G DynModel = 7
	DynAirborne4G DynModel = 8
	DynWrist      DynModel = 9
)

// FixMode is the CFG-NAV5 position fixing mode.
type FixMode uint8

const (
	Fix2DOnly FixMode = 1
	Fix3DOnly FixMode = 2
	FixAuto   FixMode = 3
)

// GNSSID identifies a constellation in CFG-GNSS.
type GNSSID uint8

const (
	GNSSGPS     GNSSID = 0
	GNSSSBAS    GNSSID = 1
	GNSSGalileo GNSSID = 2
	GNSSBeiDou  GNSSID = 3
	GNSSIMES    GNSSID = 4
	GNSSQZSS    GNSSID = 5
	GNSSGLONASS GNSSID = 6
)

// CFG-GNSS config block flags
const (
	GNSSFlagEnable = 1 << 0
	sigCfgShift    = 16

	SigGPSL1CA    = 0x01 << sigCfgShift
	SigGPSL2C     = 0x10 << sigCfgShift
	SigGPSL5      = 0x20 << sigCfgShift
	SigSBASL1CA   = 0x01 << sigCfgShift
	SigGalileoE1  = 0x01 << sigCfgShift
	SigGalileoE5a = 0x10 << sigCfgShift
	SigGalileoE5b = 0x20 << sigCfgShift
	SigBeiDouB1I  = 0x01 << sigCfgShift
	SigBeiDouB2I  = 0x10 << sigCfgShift
	SigBeiDouB2A  = 0x80 << sigCfgShift
	SigIMESL1     = 0x01 << sigCfgShift
	SigQZSSL1CA   = 0x01 << sigCfgShift
	SigQZSSL1S    = 0x04 << sigCfgShift
	SigQZSSL2C    = 0x10 << sigCfgShift
	SigQZSSL5     = 0x20 << sigCfgShift
	SigGLONASSL1  = 0x01 << sigCfgShift
	SigGLONASSL2  = 0x10 << sigCfgShift
)

// Decoder states (internal)
const (
	stateSync1 = iota
	stateSync2
	stateClass
	stateID
	stateLenLow
	stateLenHigh
	statePayload
	stateCkA
	stateCkB
)
