// Copyright 2013-2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package swipe implements the SWIPE query-vs-many-targets local alignment
// kernel: a Smith-Waterman-with-affine-gaps dynamic-programming engine that
// packs many database targets into the lanes of a score vector
// (github.com/grailbio/diamond-core/scorevec) and escalates lane width on
// saturation. See SPEC_FULL.md §4.2-4.4, grounded on
// original_source/src/dp/swipe/swipe.cpp.
package swipe
