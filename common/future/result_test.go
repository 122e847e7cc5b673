// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package future

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResult_Of_KeepsValueOrError(t *testing.T) {
	require := require.New(t)

	value, err := Of(12, nil).Get()
	require.NoError(err)
	require.Equal(12, value)

	injected := errors.New("injected")
	res := Of(12, injected)
	require.True(res.Failed())
	value, err = res.Get()
	require.ErrorIs(err, injected)
	require.Zero(value)

	require.False(Ok("x").Failed())
	require.True(Err[string](injected).Failed())
}
