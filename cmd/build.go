// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/ubxctl/internal/scriptfile"
	"github.com/Thermoquad/ubxctl/pkg/ubx"
)

var (
	buildRaw    bool
	buildCArray bool
)

var buildCmd = &cobra.Command{
	Use:   "build <message> [fields]",
	Short: "Print the UBX frame for a configuration message",
	Long: `Build a configuration frame and print it as hex.

Messages: reset, rate, portPoll, port, nav5, gnss. Fields are given as a
YAML mapping, the same way as in script files; omitted fields keep the
message defaults.

Examples:
  ubxctl build reset '{mask: warm, mode: software}'
  ubxctl build rate '{class: 0xF0, id: 0x00, rate: 0}'
  ubxctl build gnss '{enable: [gps, galileo], disable: [glonass]}'
  ubxctl build port '{baud: 115200, out: [ubx]}' --raw > /dev/ttyACM0`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: scriptfile.Builders,
	RunE:      runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildRaw, "raw", false, "Write the binary frame to stdout")
	buildCmd.Flags().BoolVar(&buildCArray, "c-array", false, "Print as a C byte array")
}

func runBuild(cmd *cobra.Command, args []string) error {
	fields := "{}"
	if len(args) == 2 {
		fields = args[1]
	}
	frame, err := scriptfile.EncodeMessage(args[0] + ": " + fields)
	if err != nil {
		return err
	}
	return writeFrame(cmd.OutOrStdout(), ubx.Frame(frame))
}

func writeFrame(w io.Writer, f ubx.Frame) error {
	if buildRaw {
		_, err := w.Write(f)
		return err
	}

	if buildCArray {
		parts := make([]string, len(f))
		for i, b := range f {
			parts[i] = fmt.Sprintf("0x%02X", b)
		}
		_, err := fmt.Fprintf(w, "{%s}\n", strings.Join(parts, ", "))
		return err
	}

	fmt.Fprintf(w, "%s (%d bytes)\n", ubx.FormatMessageType(f.Class(), f.ID()), len(f))
	fmt.Fprintf(w, "% X\n", []byte(f))
	fmt.Fprint(w, ubx.FormatPayload(f.Class(), f.ID(), f.Payload()))
	return nil
}
