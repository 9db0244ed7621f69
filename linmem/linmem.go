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

// Package linmem abstracts a 32-bit wasm-style linear memory: a flat,
// zero-initialized byte region that only ever grows, in units of 64KiB
// pages, by an explicit host call.
//
// Memory is a structural subset of wazero's api.Memory, so a memory taken
// from an instantiated wazero module satisfies it directly.
package linmem

// PageSize is the wasm native page size in bytes.
const PageSize = 64 * 1024

// MaxPages is the number of pages addressable with a 32-bit offset.
const MaxPages = 1 << 16

// Memory is a growable linear memory addressed by 32-bit offsets.
// All accessors report failure instead of panicking when the requested
// range is out of the currently committed region.
type Memory interface {
	// Size returns the committed size in bytes (always a multiple of PageSize).
	Size() uint32

	// Grow commits deltaPages more pages, returning the previous size in
	// pages. ok is false if the memory cannot grow (max reached); in that
	// case nothing changes.
	Grow(deltaPages uint32) (previousPages uint32, ok bool)

	// ReadUint32Le reads a little-endian uint32 at offset.
	ReadUint32Le(offset uint32) (uint32, bool)

	// WriteUint32Le writes a little-endian uint32 at offset.
	WriteUint32Le(offset, v uint32) bool

	// Read returns a view of byteCount bytes at offset. The view aliases
	// the underlying memory and is only valid until the next Grow.
	Read(offset, byteCount uint32) ([]byte, bool)

	// Write copies v into memory at offset.
	Write(offset uint32, v []byte) bool
}
