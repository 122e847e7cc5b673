// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/urfave/cli/v2"
)

var (
	cpuProfileFlag = cli.StringFlag{
		Name:  "cpuprofile",
		Usage: "sets the target file for storing CPU profiles to, disabled if empty",
	}
	memProfileFlag = cli.StringFlag{
		Name:  "memprofile",
		Usage: "sets the target file for a heap profile taken at exit, disabled if empty",
	}
)

var diagnosticFlags = []cli.Flag{&cpuProfileFlag, &memProfileFlag}

// addPerformanceDiagnoses wraps an action with optional CPU and heap
// profiling.
func addPerformanceDiagnoses(action cli.ActionFunc) cli.ActionFunc {
	return func(context *cli.Context) error {
		if file := context.String(cpuProfileFlag.Name); file != "" {
			stop, err := startCpuProfiler(file)
			if err != nil {
				return err
			}
			defer stop()
		}
		if file := context.String(memProfileFlag.Name); file != "" {
			defer func() {
				if err := writeHeapProfile(file); err != nil {
					fmt.Fprintf(os.Stderr, "failed to write heap profile: %v\n", err)
				}
			}()
		}
		return action(context)
	}
}

func startCpuProfiler(filename string) (func(), error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}

func writeHeapProfile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
