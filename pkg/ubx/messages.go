// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"encoding/binary"
	"fmt"
)

// Message is a UBX payload layout that knows its class, id and size.
// PutPayload receives exactly PayloadSize bytes and must fill all of them.
type Message interface {
	Class() byte
	ID() byte
	PayloadSize() int
	PutPayload(p []byte)
}

// Build writes msg as a complete frame into dst.
func Build(dst []byte, msg Message) (int, error) {
	size := msg.PayloadSize()
	if size > MaxPayload {
		return 0, fmt.Errorf("%w: payload too large: %d bytes (max %d)", ErrInvalidArgument, size, MaxPayload)
	}
	if len(dst) < FrameSize(size) {
		return 0, fmt.Errorf("%w: buffer too small: %d bytes (need %d)", ErrInvalidArgument, len(dst), FrameSize(size))
	}
	msg.PutPayload(dst[idxPayload : idxPayload+size])
	return finishFrame(dst, msg.Class(), msg.ID(), size), nil
}

// Encode allocates a frame for msg.
func Encode(msg Message) (Frame, error) {
	size := msg.PayloadSize()
	if size > MaxPayload {
		return nil, fmt.Errorf("%w: payload too large: %d bytes (max %d)", ErrInvalidArgument, size, MaxPayload)
	}
	buf := make([]byte, FrameSize(size))
	n, err := Build(buf, msg)
	if err != nil {
		return nil, err
	}
	return Frame(buf[:n]), nil
}

// CfgPrtPoll polls the configuration of one I/O port (CFG-PRT, 1 byte).
type CfgPrtPoll struct {
	PortID uint8
}

// DefaultCfgPrtPoll polls UART1.
func DefaultCfgPrtPoll() CfgPrtPoll {
	return CfgPrtPoll{PortID: PortUART1}
}

func (CfgPrtPoll) Class() byte      { return ClassCFG }
func (CfgPrtPoll) ID() byte         { return IDCfgPrt }
func (CfgPrtPoll) PayloadSize() int { return CfgPrtPollPayloadSize }

func (c CfgPrtPoll) PutPayload(p []byte) {
	p[0] = c.PortID
}

// CfgPrtSet configures a UART port (CFG-PRT, 20 bytes).
type CfgPrtSet struct {
	PortID       uint8
	TxReady      uint16
	Mode         uint32
	Baudrate     uint32
	InProtoMask  uint16
	OutProtoMask uint16
	Flags        uint16
}

// DefaultCfgPrtSet returns the UART1 factory configuration: 8N1 at 9600
// baud, UBX+NMEA+RTCM in, UBX+NMEA out.
func DefaultCfgPrtSet() CfgPrtSet {
	return CfgPrtSet{
		PortID:       PortUART1,
		TxReady:      0x0000,
		Mode:         ModeCharLen8 | ModeParityNone | ModeStopBits1,
		Baudrate:     DefaultBaudrate,
		InProtoMask:  InProtoUBX | InProtoNMEA | InProtoRTCM,
		OutProtoMask: OutProtoUBX | OutProtoNMEA,
		Flags:        0x0000,
	}
}

func (CfgPrtSet) Class() byte      { return ClassCFG }
func (CfgPrtSet) ID() byte         { return IDCfgPrt }
func (CfgPrtSet) PayloadSize() int { return CfgPrtSetPayloadSize }

func (c CfgPrtSet) PutPayload(p []byte) {
	p[0] = c.PortID
	p[1] = 0 // reserved
	binary.LittleEndian.PutUint16(p[2:], c.TxReady)
	binary.LittleEndian.PutUint32(p[4:], c.Mode)
	binary.LittleEndian.PutUint32(p[8:], c.Baudrate)
	binary.LittleEndian.PutUint16(p[12:], c.InProtoMask)
	binary.LittleEndian.PutUint16(p[14:], c.OutProtoMask)
	binary.LittleEndian.PutUint16(p[16:], c.Flags)
	p[18], p[19] = 0, 0
}

// ParseCfgPrtSet decodes a CFG-PRT answer to a port poll.
func ParseCfgPrtSet(p []byte) (CfgPrtSet, error) {
	if len(p) != CfgPrtSetPayloadSize {
		return CfgPrtSet{}, fmt.Errorf("CFG-PRT payload is %d bytes (expected %d)", len(p), CfgPrtSetPayloadSize)
	}
	return CfgPrtSet{
		PortID:       p[0],
		TxReady:      binary.LittleEndian.Uint16(p[2:]),
		Mode:         binary.LittleEndian.Uint32(p[4:]),
		Baudrate:     binary.LittleEndian.Uint32(p[8:]),
		InProtoMask:  binary.LittleEndian.Uint16(p[12:]),
		OutProtoMask: binary.LittleEndian.Uint16(p[14:]),
		Flags:        binary.LittleEndian.Uint16(p[16:]),
	}, nil
}

// CfgRst resets the receiver (CFG-RST, 4 bytes). The receiver does not
// acknowledge this message.
type CfgRst struct {
	NavBbrMask NavBbrMask
	ResetMode  ResetMode
}

// DefaultCfgRst is a cold start with hardware reset.
func DefaultCfgRst() CfgRst {
	return CfgRst{NavBbrMask: NavBbrColdStart, ResetMode: ResetHardware}
}

func (CfgRst) Class() byte      { return ClassCFG }
func (CfgRst) ID() byte         { return IDCfgRst }
func (CfgRst) PayloadSize() int { return CfgRstPayloadSize }

func (c CfgRst) PutPayload(p []byte) {
	binary.LittleEndian.PutUint16(p[0:], uint16(c.NavBbrMask))
	p[2] = uint8(c.ResetMode)
	p[3] = 0 // reserved
}

// CfgNav5 holds the navigation engine settings (CFG-NAV5, 36 bytes).
// Units follow the receiver description: altitudes in 0.01 m, altitude
// variance in 0.0001 m^2, DOP values scaled by 0.1.
type CfgNav5 struct {
	Mask                uint16
	DynModel            DynModel
	FixMode             FixMode
	FixedAlt            int32
	FixedAltVar         uint32
	MinElev             int8
	DrLimit             uint8
	PDop                uint16
	TDop                uint16
	PAcc                uint16
	TAcc                uint16
	StaticHoldThreshold uint8
	DGNSSTimeout        uint8
	CnoThresholdNumSVs  uint8
	CnoThreshold        uint8
	StaticHoldMaxDist   uint16
	UTCStandard         uint8
}

// DefaultCfgNav5 returns the factory navigation settings with every mask
// bit set so the whole block is applied.
func DefaultCfgNav5() CfgNav5 {
	return CfgNav5{
		Mask:         cfgNav5DefaultMask,
		DynModel:     DynPortable,
		FixMode:      FixAuto,
		FixedAlt:     0,
		FixedAltVar:  cfgNav5DefaultAltVar,
		MinElev:      cfgNav5DefaultMinElev,
		PDop:         cfgNav5DefaultDOP,
		TDop:         cfgNav5DefaultDOP,
		PAcc:         cfgNav5DefaultPAcc,
		TAcc:         cfgNav5DefaultTAcc,
		DGNSSTimeout: cfgNav5DefaultDGNSSTout,
	}
}

func (CfgNav5) Class() byte      { return ClassCFG }
func (CfgNav5) ID() byte         { return IDCfgNav5 }
func (CfgNav5) PayloadSize() int { return CfgNav5PayloadSize }

func (c CfgNav5) PutPayload(p []byte) {
	clear(p[:CfgNav5PayloadSize])
	binary.LittleEndian.PutUint16(p[0:], c.Mask)
	p[2] = uint8(c.DynModel)
	p[3] = uint8(c.FixMode)
	binary.LittleEndian.PutUint32(p[4:], uint32(c.FixedAlt))
	binary.LittleEndian.PutUint32(p[8:], c.FixedAltVar)
	p[12] = uint8(c.MinElev)
	p[13] = c.DrLimit
	binary.LittleEndian.PutUint16(p[14:], c.PDop)
	binary.LittleEndian.PutUint16(p[16:], c.TDop)
	binary.LittleEndian.PutUint16(p[18:], c.PAcc)
	binary.LittleEndian.PutUint16(p[20:], c.TAcc)
	p[22] = c.StaticHoldThreshold
	p[23] = c.DGNSSTimeout
	p[24] = c.CnoThresholdNumSVs
	p[25] = c.CnoThreshold
	binary.LittleEndian.PutUint16(p[28:], c.StaticHoldMaxDist)
	p[30] = c.UTCStandard
}

// GNSSBlock is one constellation entry in CFG-GNSS.
type GNSSBlock struct {
	ID       GNSSID
	ResTrkCh uint8
	MaxTrkCh uint8
	Flags    uint32
}

// CfgGNSS enables or disables constellations (CFG-GNSS, 4 + 8*n bytes).
type CfgGNSS struct {
	MsgVer      uint8
	NumTrkChHW  uint8
	NumTrkChUse uint8
	Blocks      []GNSSBlock
}

// DefaultCfgGNSS returns the header defaults with no config blocks.
func DefaultCfgGNSS() CfgGNSS {
	return CfgGNSS{
		MsgVer:      cfgGNSSDefaultMsgVer,
		NumTrkChHW:  cfgGNSSDefaultTrkChHW,
		NumTrkChUse: cfgGNSSDefaultTrkChUse,
	}
}

// Enable appends a block enabling id with the given signal mask.
func (c *CfgGNSS) Enable(id GNSSID, resTrkCh, maxTrkCh uint8, signals uint32) {
	c.Blocks = append(c.Blocks, GNSSBlock{
		ID:       id,
		ResTrkCh: resTrkCh,
		MaxTrkCh: maxTrkCh,
		Flags:    GNSSFlagEnable | signals,
	})
}

// Disable appends a block disabling id.
func (c *CfgGNSS) Disable(id GNSSID) {
	c.Blocks = append(c.Blocks, GNSSBlock{ID: id})
}

func (CfgGNSS) Class() byte { return ClassCFG }
func (CfgGNSS) ID() byte    { return IDCfgGNSS }

func (c CfgGNSS) PayloadSize() int {
	return CfgGNSSHeaderSize + CfgGNSSBlockSize*len(c.Blocks)
}

func (c CfgGNSS) PutPayload(p []byte) {
	p[0] = c.MsgVer
	p[1] = c.NumTrkChHW
	p[2] = c.NumTrkChUse
	p[3] = uint8(len(c.Blocks))
	for i, blk := range c.Blocks {
		o := CfgGNSSHeaderSize + i*CfgGNSSBlockSize
		p[o] = uint8(blk.ID)
		p[o+1] = blk.ResTrkCh
		p[o+2] = blk.MaxTrkCh
		p[o+3] = 0 // reserved
		binary.LittleEndian.PutUint32(p[o+4:], blk.Flags)
	}
}

// CfgMsg sets the output rate of one message on the current port
// (CFG-MSG, 3 bytes). Rate 0 disables the message.
type CfgMsg struct {
	MsgClass uint8
	MsgID    uint8
	Rate     uint8
}

// DefaultCfgMsg returns a message rate of 1 (every navigation solution).
func DefaultCfgMsg() CfgMsg {
	return CfgMsg{Rate: cfgMsgDefaultRate}
}

func (CfgMsg) Class() byte      { return ClassCFG }
func (CfgMsg) ID() byte         { return IDCfgMsg }
func (CfgMsg) PayloadSize() int { return CfgMsgPayloadSize }

func (c CfgMsg) PutPayload(p []byte) {
	p[0] = c.MsgClass
	p[1] = c.MsgID
	p[2] = c.Rate
}

// BuildPortPoll writes a CFG-PRT poll frame into dst.
func BuildPortPoll(dst []byte, c CfgPrtPoll) (int, error) {
	return Build(dst, c)
}

// BuildPortConfig writes a CFG-PRT set frame into dst.
func BuildPortConfig(dst []byte, c CfgPrtSet) (int, error) {
	return Build(dst, c)
}

// BuildReset writes a CFG-RST frame into dst.
func BuildReset(dst []byte, c CfgRst) (int, error) {
	return Build(dst, c)
}

// BuildNavSettings writes a CFG-NAV5 frame into dst.
func BuildNavSettings(dst []byte, c CfgNav5) (int, error) {
	return Build(dst, c)
}

// BuildGNSSEnable writes a CFG-GNSS frame into dst.
func BuildGNSSEnable(dst []byte, c CfgGNSS) (int, error) {
	if len(c.Blocks) > maxGNSSBlocks {
		return 0, fmt.Errorf("%w: %d config blocks (max %d)", ErrInvalidArgument, len(c.Blocks), maxGNSSBlocks)
	}
	return Build(dst, c)
}

// BuildMessageRate writes a CFG-MSG frame into dst.
func BuildMessageRate(dst []byte, c CfgMsg) (int, error) {
	return Build(dst, c)
}
