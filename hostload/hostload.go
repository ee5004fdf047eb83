// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package hostload reports the host's CPU core count and load averages.
package hostload

//go:generate mockgen -copyright_file=../.github/license-header.txt -source=hostload.go -destination=mocks/mock_sampler.go -package=mocks Sampler

import (
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// Separator joins the 1, 5 and 15 minute averages in a summary.
const Separator = " – "

// Load is a snapshot of the host CPU load.
type Load struct {
	Cores  int
	Load1  float64
	Load5  float64
	Load15 float64
}

// Title returns the field title for the snapshot, e.g. "CPU Load (8 cores)".
func (l Load) Title() string {
	return Title(l.Cores)
}

// Summary renders the averages rounded to two decimals, e.g. "0.52 – 0.4 – 0.31".
func (l Load) Summary() string {
	parts := []string{
		strconv.FormatFloat(Round2(l.Load1), 'f', -1, 64),
		strconv.FormatFloat(Round2(l.Load5), 'f', -1, 64),
		strconv.FormatFloat(Round2(l.Load15), 'f', -1, 64),
	}
	return strings.Join(parts, Separator)
}

// Title returns the field title for a host with the given number of cores.
func Title(cores int) string {
	return fmt.Sprintf("CPU Load (%d cores)", cores)
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Sampler takes load snapshots.
type Sampler interface {
	Sample() (Load, error)
}

// ProcSampler reads load averages from the proc filesystem.
type ProcSampler struct {
	fs procfs.FS
}

// NewProcSampler returns a sampler reading from the default /proc mount point.
func NewProcSampler() (*ProcSampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("opening procfs: %w", err)
	}
	return &ProcSampler{fs: fs}, nil
}

// NewProcSamplerAt returns a sampler reading from a proc filesystem mounted at mountPoint.
func NewProcSamplerAt(mountPoint string) (*ProcSampler, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("opening procfs at %s: %w", mountPoint, err)
	}
	return &ProcSampler{fs: fs}, nil
}

// Sample reads the current load averages.
func (s *ProcSampler) Sample() (Load, error) {
	avg, err := s.fs.LoadAvg()
	if err != nil {
		return Load{Cores: runtime.NumCPU()}, fmt.Errorf("reading load average: %w", err)
	}
	return Load{
		Cores:  runtime.NumCPU(),
		Load1:  avg.Load1,
		Load5:  avg.Load5,
		Load15: avg.Load15,
	}, nil
}

// Unavailable is a Sampler for hosts without a proc filesystem.
// It reports the core count and always fails to read averages.
type Unavailable struct{}

// Sample returns the core count and an error.
func (Unavailable) Sample() (Load, error) {
	return Load{Cores: runtime.NumCPU()}, fmt.Errorf("load averages unavailable on %s", runtime.GOOS)
}

// Default returns a procfs sampler, or Unavailable when /proc cannot be opened.
func Default() Sampler {
	s, err := NewProcSampler()
	if err != nil {
		return Unavailable{}
	}
	return s
}
