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
	"encoding/binary"
	"fmt"
)

// SliceMemory is an in-process Memory backed by a byte slice. It mirrors
// wasm memory semantics: page-granular growth, fresh pages zeroed, an
// optional maximum, and no shrinking.
type SliceMemory struct {
	buf      []byte
	maxPages uint32

	grows int
}

// NewSlice returns a SliceMemory committed at minPages and growable up to
// maxPages. maxPages must not exceed MaxPages (65536).
func NewSlice(minPages, maxPages uint32) (*SliceMemory, error) {
	if maxPages > MaxPages {
		return nil, fmt.Errorf("linmem: maxPages %d exceeds %d", maxPages, MaxPages)
	}
	if minPages > maxPages {
		return nil, fmt.Errorf("linmem: minPages %d exceeds maxPages %d", minPages, maxPages)
	}
	return &SliceMemory{
		buf:      make([]byte, int(minPages)*PageSize),
		maxPages: maxPages,
	}, nil
}

func (m *SliceMemory) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *SliceMemory) Grow(deltaPages uint32) (uint32, bool) {
	cur := uint32(len(m.buf) / PageSize)
	if deltaPages > m.maxPages-cur {
		return 0, false
	}
	m.buf = append(m.buf, make([]byte, int(deltaPages)*PageSize)...)
	m.grows++
	return cur, true
}

// GrowCount reports how many successful Grow calls were made. Tests use it
// to verify that free-list reuse does not hit the host.
func (m *SliceMemory) GrowCount() int {
	return m.grows
}

func (m *SliceMemory) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.hasRange(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), true
}

func (m *SliceMemory) WriteUint32Le(offset, v uint32) bool {
	if !m.hasRange(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], v)
	return true
}

func (m *SliceMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.hasRange(offset, byteCount) {
		return nil, false
	}
	return m.buf[offset : offset+byteCount : offset+byteCount], true
}

func (m *SliceMemory) Write(offset uint32, v []byte) bool {
	if !m.hasRange(offset, uint32(len(v))) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}

func (m *SliceMemory) hasRange(offset, byteCount uint32) bool {
	return uint64(offset)+uint64(byteCount) <= uint64(len(m.buf))
}
