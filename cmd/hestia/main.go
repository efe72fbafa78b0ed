// main.go: Entry point of the hestia command
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"

	"github.com/agilira/hestia"
	"github.com/agilira/hestia/cmd/cli"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	manager := cli.NewManager()

	config, err := hestia.LoadConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hestia: %v\n", err)
		return 2
	}
	if config.Audit.Enabled {
		auditLogger, err := hestia.NewAuditLogger(config.Audit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hestia: %v\n", err)
			return 2
		}
		defer func() { _ = auditLogger.Close() }()
		manager.WithAudit(auditLogger)
	}

	if err := manager.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "hestia: %v\n", err)
		return 1
	}
	return 0
}
