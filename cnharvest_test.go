// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cnharvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionDefaults(t *testing.T) {
	assert.Equal(t, "unstable", GetVersion())
	assert.Equal(t, "development", GetBuild())
}
