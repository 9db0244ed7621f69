// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlice(t *testing.T) {
	tests := []struct {
		name    string
		min     uint32
		max     uint32
		wantErr bool
	}{
		{"empty", 0, 0, false},
		{"one_page", 1, 4, false},
		{"full_range", 0, MaxPages, false},
		{"min_over_max", 4, 2, true},
		{"max_over_limit", 0, MaxPages + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewSlice(tt.min, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.min*PageSize, m.Size())
		})
	}
}

func TestGrow(t *testing.T) {
	m, err := NewSlice(1, 3)
	require.NoError(t, err)

	prev, ok := m.Grow(1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), prev)
	assert.Equal(t, uint32(2*PageSize), m.Size())
	assert.Equal(t, 1, m.GrowCount())

	// over the max: nothing changes
	_, ok = m.Grow(2)
	assert.False(t, ok)
	assert.Equal(t, uint32(2*PageSize), m.Size())
	assert.Equal(t, 1, m.GrowCount())

	prev, ok = m.Grow(1)
	require.True(t, ok)
	assert.Equal(t, uint32(2), prev)
}

func TestGrowZeroes(t *testing.T) {
	m, err := NewSlice(0, 2)
	require.NoError(t, err)

	_, ok := m.Grow(2)
	require.True(t, ok)
	buf, ok := m.Read(0, 2*PageSize)
	require.True(t, ok)
	for i, b := range buf {
		require.Zero(t, b, "offset=%d", i)
	}
}

func TestReadWrite(t *testing.T) {
	m, err := NewSlice(1, 1)
	require.NoError(t, err)

	require.True(t, m.WriteUint32Le(0, 0xDEADBEEF))
	v, ok := m.ReadUint32Le(0)
	require.True(t, ok)
	assert.Equal(t, uint32(0xDEADBEEF), v)

	data := []byte{1, 2, 3, 4, 5}
	require.True(t, m.Write(100, data))
	got, ok := m.Read(100, 5)
	require.True(t, ok)
	assert.Equal(t, data, got)

	// out of range accesses fail without panicking
	assert.False(t, m.WriteUint32Le(PageSize-3, 1))
	_, ok = m.ReadUint32Le(PageSize - 3)
	assert.False(t, ok)
	assert.False(t, m.Write(PageSize-4, data))
	_, ok = m.Read(PageSize, 1)
	assert.False(t, ok)

	// boundary accesses succeed
	assert.True(t, m.WriteUint32Le(PageSize-4, 1))
	_, ok = m.Read(PageSize, 0)
	assert.True(t, ok)
}
