// Copyright 2013-2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package dconfig holds the configuration knobs the core pipeline consumes
// (spec.md §6). There is no flag-parsing layer here: CLI parsing is an
// out-of-scope collaborator (spec.md §1); callers build a Config directly.
package dconfig

import "github.com/pkg/errors"

// Sensitivity selects the seeder profile used by the clustering driver's
// two passes (spec.md §4.9).
type Sensitivity int

const (
	// Default is the low-sensitivity profile used for pass 1.
	Default Sensitivity = iota
	// Sensitive is the higher-sensitivity profile used for pass 2.
	Sensitive
)

// Config bundles every knob the core touches, per spec.md §6.
type Config struct {
	// DatabasePath is the reference database the clustering driver aligns
	// against. Required.
	DatabasePath string

	// GlobalRankingTargets is the top-K cap for the ranking list builder
	// (spec.md §4.7).
	GlobalRankingTargets int

	// UngappedWindow is the half-window width used by the overflow
	// rescorer (spec.md §4.6).
	UngappedWindow int

	// Sensitivity selects the seeder profile (spec.md §4.9).
	Sensitivity Sensitivity

	// QueryCover and SubjectCover are percentage coverage filters (0-100)
	// applied by the clustering driver's self-alignment pass (spec.md
	// §4.9). A zero value is unset: the clustering driver then passes 80
	// (DefaultQueryCover, DefaultSubjectCover) to its self-aligner, per the
	// original clusterer.
	QueryCover, SubjectCover int

	// MaxEvalue and MaxAlignments are consumed only by the (out-of-scope)
	// blast-tab formatter; they are kept here purely for test wiring, per
	// spec.md §6, and are never read by this module's own operations.
	MaxEvalue    float64
	MaxAlignments int
}

// Default knob values, matching multi_step_cluster.cpp's hardcoded 80%
// coverage filter (original_source/src/cluster/multi_step_cluster.cpp).
const (
	DefaultQueryCover   = 80
	DefaultSubjectCover = 80
)

// Validate checks the knobs a driver entry point requires are present.
// Missing required configuration is fatal at driver entry, per spec.md §7.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("dconfig: missing required parameter: database path")
	}
	if c.GlobalRankingTargets <= 0 {
		return errors.New("dconfig: global_ranking_targets must be positive")
	}
	if c.UngappedWindow <= 0 {
		return errors.New("dconfig: ungapped_window must be positive")
	}
	return nil
}
