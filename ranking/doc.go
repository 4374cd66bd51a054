// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package ranking implements the global-ranking pipeline's binary record
// codec, the mutex-serialized query-target fetcher, the overflow rescorer
// and the ranking list builder. See SPEC_FULL.md §4.5-4.7, grounded on
// original_source/src/align/global_ranking/global_ranking.cpp.
package ranking
