// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scriptfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/ubxctl/pkg/ubx"
)

// ubxDoc selects exactly one configuration message builder. Fields left
// out of a builder keep the message defaults.
type ubxDoc struct {
	Reset    *resetDoc    `yaml:"reset"`
	Rate     *rateDoc     `yaml:"rate"`
	PortPoll *portPollDoc `yaml:"portPoll"`
	Port     *portDoc     `yaml:"port"`
	Nav5     *nav5Doc     `yaml:"nav5"`
	GNSS     *gnssDoc     `yaml:"gnss"`
}

type resetDoc struct {
	Mask *named[ubx.NavBbrMask] `yaml:"mask"`
	Mode *named[ubx.ResetMode]  `yaml:"mode"`
}

type rateDoc struct {
	Class *uint8 `yaml:"class"`
	ID    *uint8 `yaml:"id"`
	Rate  *uint8 `yaml:"rate"`
}

type portPollDoc struct {
	Port *named[uint8] `yaml:"port"`
}

type portDoc struct {
	Port *named[uint8]   `yaml:"port"`
	Baud *uint32         `yaml:"baud"`
	In   []named[uint16] `yaml:"in"`
	Out  []named[uint16] `yaml:"out"`
}

type nav5Doc struct {
	DynModel *named[ubx.DynModel] `yaml:"dynModel"`
	FixMode  *named[ubx.FixMode]  `yaml:"fixMode"`
	MinElev  *int8                `yaml:"minElev"`
}

type gnssDoc struct {
	Enable  []named[ubx.GNSSID] `yaml:"enable"`
	Disable []named[ubx.GNSSID] `yaml:"disable"`
}

var (
	resetMasks = map[string]ubx.NavBbrMask{
		"hot":  ubx.NavBbrHotStart,
		"warm": ubx.NavBbrWarmStart,
		"cold": ubx.NavBbrColdStart,
	}
	resetModes = map[string]ubx.ResetMode{
		"hardware":          ubx.ResetHardware,
		"software":          ubx.ResetControlledSoftware,
		"gnss":              ubx.ResetControlledSoftwareGNSS,
		"hardware-shutdown": ubx.ResetHardwareAfterShutdown,
		"gnss-stop":         ubx.ResetControlledGNSSStop,
		"gnss-start":        ubx.ResetControlledGNSSStart,
	}
	ports = map[string]uint8{
		"ddc":   ubx.PortDDC,
		"i2c":   ubx.PortDDC,
		"uart1": ubx.PortUART1,
		"uart2": ubx.PortUART2,
		"usb":   ubx.PortUSB,
		"spi":   ubx.PortSPI,
	}
	inProtocols = map[string]uint16{
		"ubx":   ubx.InProtoUBX,
		"nmea":  ubx.InProtoNMEA,
		"rtcm":  ubx.InProtoRTCM,
		"rtcm3": ubx.InProtoRTCM3,
	}
	outProtocols = map[string]uint16{
		"ubx":   ubx.OutProtoUBX,
		"nmea":  ubx.OutProtoNMEA,
		"rtcm3": ubx.OutProtoRTCM3,
	}
	dynModels = map[string]ubx.DynModel{
		"portable":   ubx.DynPortable,
		"stationary": ubx.DynStationary,
		"pedestrian": ubx.DynPedestrian,
		"automotive": ubx.DynAutomotive,
		"sea":        ubx.DynSea,
		"airborne1g": ubx.DynAirborne1G,
		"airborne2g": ubx.DynAirborne2G,
		"airborne4g": ubx.DynAirborne4G,
		"wrist":      ubx.DynWrist,
	}
	fixModes = map[string]ubx.FixMode{
		"2d":   ubx.Fix2DOnly,
		"3d":   ubx.Fix3DOnly,
		"auto": ubx.FixAuto,
	}
	constellations = map[string]ubx.GNSSID{
		"gps":     ubx.GNSSGPS,
		"sbas":    ubx.GNSSSBAS,
		"galileo": ubx.GNSSGalileo,
		"beidou":  ubx.GNSSBeiDou,
		"imes":    ubx.GNSSIMES,
		"qzss":    ubx.GNSSQZSS,
		"glonass": ubx.GNSSGLONASS,
	}
)

// gnssProfile is the tracking channel reservation and signal set used
// when a constellation is enabled from a script
type gnssProfile struct {
	resTrkCh, maxTrkCh uint8
	signals            uint32
}

var gnssProfiles = map[ubx.GNSSID]gnssProfile{
	ubx.GNSSGPS:     {8, 16, ubx.SigGPSL1CA},
	ubx.GNSSSBAS:    {1, 3, ubx.SigSBASL1CA},
	ubx.GNSSGalileo: {4, 8, ubx.SigGalileoE1},
	ubx.GNSSBeiDou:  {8, 16, ubx.SigBeiDouB1I},
	ubx.GNSSIMES:    {0, 8, ubx.SigIMESL1},
	ubx.GNSSQZSS:    {0, 3, ubx.SigQZSSL1CA},
	ubx.GNSSGLONASS: {8, 14, ubx.SigGLONASSL1},
}

// named is a numeric field that also accepts a symbolic name
type named[T ~uint8 | ~uint16] struct {
	value T
}

func (n *named[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a name or number", node.Line)
	}
	var zero T
	bits := 8
	if ^zero > 0xFF {
		bits = 16
	}
	if v, err := strconv.ParseUint(node.Value, 0, bits); err == nil {
		n.value = T(v)
		return nil
	}
	v, ok := namesFor[T]()[strings.ToLower(node.Value)]
	if !ok {
		return fmt.Errorf("line %d: unknown value %q", node.Line, node.Value)
	}
	n.value = v
	return nil
}

// namesFor returns the symbolic names of T. Plain uint8 and uint16 fields
// are ports and protocol masks respectively.
func namesFor[T ~uint8 | ~uint16]() map[string]T {
	var tables []any
	var zero T
	switch any(zero).(type) {
	case ubx.NavBbrMask:
		tables = append(tables, resetMasks)
	case ubx.ResetMode:
		tables = append(tables, resetModes)
	case ubx.DynModel:
		tables = append(tables, dynModels)
	case ubx.FixMode:
		tables = append(tables, fixModes)
	case ubx.GNSSID:
		tables = append(tables, constellations)
	case uint8:
		tables = append(tables, ports)
	case uint16:
		tables = append(tables, inProtocols, outProtocols)
	}
	out := make(map[string]T)
	for _, t := range tables {
		for k, v := range t.(map[string]T) {
			out[k] = v
		}
	}
	return out
}

func (d *ubxDoc) encode() ([]byte, error) {
	var msgs []ubx.Message
	if d.Reset != nil {
		c := ubx.DefaultCfgRst()
		if d.Reset.Mask != nil {
			c.NavBbrMask = d.Reset.Mask.value
		}
		if d.Reset.Mode != nil {
			c.ResetMode = d.Reset.Mode.value
		}
		msgs = append(msgs, c)
	}
	if d.Rate != nil {
		c := ubx.DefaultCfgMsg()
		if d.Rate.Class == nil || d.Rate.ID == nil {
			return nil, errors.New("rate needs class and id")
		}
		c.MsgClass, c.MsgID = *d.Rate.Class, *d.Rate.ID
		if d.Rate.Rate != nil {
			c.Rate = *d.Rate.Rate
		}
		msgs = append(msgs, c)
	}
	if d.PortPoll != nil {
		c := ubx.DefaultCfgPrtPoll()
		if d.PortPoll.Port != nil {
			c.PortID = d.PortPoll.Port.value
		}
		msgs = append(msgs, c)
	}
	if d.Port != nil {
		c, err := d.Port.message()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, c)
	}
	if d.Nav5 != nil {
		c := ubx.DefaultCfgNav5()
		if d.Nav5.DynModel != nil {
			c.DynModel = d.Nav5.DynModel.value
		}
		if d.Nav5.FixMode != nil {
			c.FixMode = d.Nav5.FixMode.value
		}
		if d.Nav5.MinElev != nil {
			c.MinElev = *d.Nav5.MinElev
		}
		msgs = append(msgs, c)
	}
	if d.GNSS != nil {
		c := ubx.DefaultCfgGNSS()
		for _, id := range d.GNSS.Enable {
			p, ok := gnssProfiles[id.value]
			if !ok {
				return nil, fmt.Errorf("no channel profile for constellation %d", id.value)
			}
			c.Enable(id.value, p.resTrkCh, p.maxTrkCh, p.signals)
		}
		for _, id := range d.GNSS.Disable {
			c.Disable(id.value)
		}
		if len(c.Blocks) == 0 {
			return nil, errors.New("gnss needs enable or disable")
		}
		msgs = append(msgs, c)
	}

	if len(msgs) != 1 {
		return nil, fmt.Errorf("ubx needs exactly one message, got %d", len(msgs))
	}
	f, err := ubx.Encode(msgs[0])
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *portDoc) message() (ubx.CfgPrtSet, error) {
	c := ubx.DefaultCfgPrtSet()
	if d.Port != nil {
		c.PortID = d.Port.value
	}
	if d.Baud != nil {
		if !supportedBaud(*d.Baud) {
			return c, fmt.Errorf("unsupported baudrate %d", *d.Baud)
		}
		c.Baudrate = *d.Baud
	}
	if d.In != nil {
		c.InProtoMask = protoMask(d.In)
	}
	if d.Out != nil {
		c.OutProtoMask = protoMask(d.Out)
	}
	return c, nil
}

func protoMask(list []named[uint16]) uint16 {
	var m uint16
	for _, p := range list {
		m |= p.value
	}
	return m
}

func supportedBaud(b uint32) bool {
	for _, r := range ubx.Baudrates {
		if r == b {
			return true
		}
	}
	return false
}

// Builders lists the message names accepted in a ubx step
var Builders = []string{"reset", "rate", "portPoll", "port", "nav5", "gnss"}

// EncodeMessage builds the frame for one builder given as a YAML mapping,
// e.g. "rate: {class: 0xF0, id: 0x00, rate: 0}".
func EncodeMessage(doc string) ([]byte, error) {
	var d ubxDoc
	dec := yaml.NewDecoder(strings.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	f, err := d.encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	return f, nil
}
