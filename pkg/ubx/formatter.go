// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f Frame, at time.Time) string {
	timestamp := at.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X 0x%02X) len=%d\n",
		timestamp, FormatMessageType(f.Class(), f.ID()), f.Class(), f.ID(), f.PayloadLen())
	return result + FormatPayload(f.Class(), f.ID(), f.Payload())
}

// FormatClass returns the class name, or hex for unknown classes
func FormatClass(class byte) string {
	switch class {
	case ClassNAV:
		return "NAV"
	case ClassRXM:
		return "RXM"
	case ClassINF:
		return "INF"
	case ClassACK:
		return "ACK"
	case ClassCFG:
		return "CFG"
	case ClassUPD:
		return "UPD"
	case ClassMON:
		return "MON"
	case ClassAID:
		return "AID"
	case ClassTIM:
		return "TIM"
	case ClassESF:
		return "ESF"
	case ClassMGA:
		return "MGA"
	case ClassLOG:
		return "LOG"
	case ClassSEC:
		return "SEC"
	case ClassHNR:
		return "HNR"
	case ClassNMEA:
		return "NMEA"
	case ClassPUBX:
		return "PUBX"
	default:
		return fmt.Sprintf("0x%02X", class)
	}
}

// FormatMessageType returns the human-readable name for a class/id pair,
// e.g. "CFG-RST" or "ACK-ACK".
func FormatMessageType(class, id byte) string {
	name := messageName(class, id)
	if name == "" {
		return fmt.Sprintf("%s-0x%02X", FormatClass(class), id)
	}
	return FormatClass(class) + "-" + name
}

func messageName(class, id byte) string {
	switch class {
	case ClassACK:
		switch id {
		case IDAckAck:
			return "ACK"
		case IDAckNak:
			return "NAK"
		}
	case ClassCFG:
		switch id {
		case IDCfgPrt:
			return "PRT"
		case IDCfgMsg:
			return "MSG"
		case IDCfgInf:
			return "INF"
		case IDCfgRst:
			return "RST"
		case IDCfgRate:
			return "RATE"
		case IDCfgCfg:
			return "CFG"
		case IDCfgNav5:
			return "NAV5"
		case IDCfgGNSS:
			return "GNSS"
		}
	case ClassNAV:
		switch id {
		case IDNavPosLLH:
			return "POSLLH"
		case IDNavStatus:
			return "STATUS"
		case IDNavPVT:
			return "PVT"
		case IDNavSat:
			return "SAT"
		}
	case ClassMON:
		switch id {
		case IDMonVer:
			return "VER"
		case IDMonHW:
			return "HW"
		}
	case ClassNMEA:
		switch id {
		case IDNmeaGGA:
			return "GGA"
		case IDNmeaGLL:
			return "GLL"
		case IDNmeaGSA:
			return "GSA"
		case IDNmeaGSV:
			return "GSV"
		case IDNmeaRMC:
			return "RMC"
		case IDNmeaVTG:
			return "VTG"
		}
	}
	return ""
}

// FormatPayload pretty prints the payloads this package knows about.
// Unknown payloads are printed as hex.
func FormatPayload(class, id byte, p []byte) string {
	switch {
	case class == ClassACK && (id == IDAckAck || id == IDAckNak):
		if len(p) != AckPayloadSize {
			return fmt.Sprintf("  Payload: % X\n", p)
		}
		return fmt.Sprintf("  Message: %s\n", FormatMessageType(p[0], p[1]))

	case class == ClassCFG && id == IDCfgMsg && len(p) == CfgMsgPayloadSize:
		return fmt.Sprintf("  Message: %s, Rate: %d\n", FormatMessageType(p[0], p[1]), p[2])

	case class == ClassCFG && id == IDCfgRst && len(p) == CfgRstPayloadSize:
		mask := NavBbrMask(binary.LittleEndian.Uint16(p[0:]))
		return fmt.Sprintf("  Start: %s (0x%04X), Reset: %s (0x%02X)\n",
			formatNavBbrMask(mask), uint16(mask), formatResetMode(ResetMode(p[2])), p[2])

	case class == ClassCFG && id == IDCfgPrt && len(p) == CfgPrtPollPayloadSize:
		return fmt.Sprintf("  Poll port: %s\n", formatPort(p[0]))

	case class == ClassCFG && id == IDCfgPrt && len(p) == CfgPrtSetPayloadSize:
		prt, _ := ParseCfgPrtSet(p)
		return fmt.Sprintf("  Port: %s, Baud: %d, Mode: 0x%08X, In: %s, Out: %s\n",
			formatPort(prt.PortID), prt.Baudrate, prt.Mode,
			formatProtoMask(prt.InProtoMask), formatProtoMask(prt.OutProtoMask))

	case class == ClassMON && id == IDMonVer && len(p) >= 40:
		sw := cString(p[0:30])
		hw := cString(p[30:40])
		result := fmt.Sprintf("  Software: %s, Hardware: %s\n", sw, hw)
		for ext := p[40:]; len(ext) >= 30; ext = ext[30:] {
			result += fmt.Sprintf("  Extension: %s\n", cString(ext[:30]))
		}
		return result

	case len(p) == 0:
		return "  (no payload)\n"

	default:
		return fmt.Sprintf("  Payload: % X\n", p)
	}
}

func formatNavBbrMask(m NavBbrMask) string {
	switch m {
	case NavBbrHotStart:
		return "HOT"
	case NavBbrWarmStart:
		return "WARM"
	case NavBbrColdStart:
		return "COLD"
	default:
		return "CUSTOM"
	}
}

func formatResetMode(m ResetMode) string {
	switch m {
	case ResetHardware:
		return "HARDWARE"
	case ResetControlledSoftware:
		return "SOFTWARE"
	case ResetControlledSoftwareGNSS:
		return "SOFTWARE_GNSS"
	case ResetHardwareAfterShutdown:
		return "HARDWARE_AFTER_SHUTDOWN"
	case ResetControlledGNSSStop:
		return "GNSS_STOP"
	case ResetControlledGNSSStart:
		return "GNSS_START"
	default:
		return "UNKNOWN"
	}
}

func formatPort(id uint8) string {
	switch id {
	case PortDDC:
		return "DDC"
	case PortUART1:
		return "UART1"
	case PortUART2:
		return "UART2"
	case PortUSB:
		return "USB"
	case PortSPI:
		return "SPI"
	default:
		return fmt.Sprintf("PORT%d", id)
	}
}

func formatProtoMask(m uint16) string {
	var names []string
	if m&InProtoUBX != 0 {
		names = append(names, "UBX")
	}
	if m&InProtoNMEA != 0 {
		names = append(names, "NMEA")
	}
	if m&InProtoRTCM != 0 {
		names = append(names, "RTCM")
	}
	if m&InProtoRTCM3 != 0 {
		names = append(names, "RTCM3")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
