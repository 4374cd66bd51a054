// Copyright 2013-2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRequiresDatabasePath(t *testing.T) {
	c := Config{GlobalRankingTargets: 10, UngappedWindow: 16}
	err := c.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database path")
}

func TestValidateOK(t *testing.T) {
	c := Config{
		DatabasePath:         "db.dmnd",
		GlobalRankingTargets: 25,
		UngappedWindow:       16,
		QueryCover:           DefaultQueryCover,
		SubjectCover:         DefaultSubjectCover,
	}
	assert.NoError(t, c.Validate())
}
