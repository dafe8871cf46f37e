// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	pre, build := PreRelease, BuildMetadata
	defer func() { PreRelease, BuildMetadata = pre, build }()

	PreRelease, BuildMetadata = "", ""
	require.Equal(t, "0.1.0", String())

	PreRelease, BuildMetadata = "rc.1", "git_abc"
	require.Equal(t, "0.1.0-rc1+gitabc", String())
}
