// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// ubxctl - u-blox receiver chat and configuration tool
//
// A CLI tool for scripting request/response exchanges with GNSS receivers,
// building UBX configuration frames and monitoring receiver output.

package main

import (
	"os"

	"github.com/Thermoquad/ubxctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
