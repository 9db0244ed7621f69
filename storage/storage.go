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

// Package storage maps typed values onto a key-value store addressed by
// 32-byte slots: fixed-width integers and addresses live in their own
// slot, and associative mappings derive per-entry slots by hashing the
// entry key together with the mapping's base slot.
//
// The package is an ordinary client of the segalloc allocator: hashing is
// staged through linear-memory scratch buffers obtained from it.
package storage

import (
	"fmt"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/cloudwego/wasmalloc/linmem"
	"github.com/cloudwego/wasmalloc/segalloc"
)

// Slot addresses one 32-byte word of the persistent store.
type Slot = [32]byte

// Address is a fixed-width account address, stored right-aligned in its
// slot the way fixed-width integers are.
type Address [20]byte

// SlotStore is the persistence boundary: read one 32-byte slot, write one
// 32-byte slot. Missing slots read as zero.
type SlotStore interface {
	LoadSlot(key Slot) (Slot, error)
	StoreSlot(key, value Slot) error
}

// MemStore is a map-backed SlotStore for tests and in-process use.
type MemStore map[Slot]Slot

func (s MemStore) LoadSlot(key Slot) (Slot, error) {
	return s[key], nil
}

func (s MemStore) StoreSlot(key, value Slot) error {
	s[key] = value
	return nil
}

// Space is a write-back cached view over a SlotStore. Loads fill the
// cache; stores only mark slots dirty until Flush. Space is single
// threaded, like the allocator it borrows scratch memory from.
type Space struct {
	store SlotStore
	mem   linmem.Memory
	alloc *segalloc.Allocator

	cache map[Slot]Slot
	dirty map[Slot]struct{}
}

// NewSpace binds a slot store to the linear memory and allocator used for
// hashing scratch buffers.
func NewSpace(store SlotStore, mem linmem.Memory, alloc *segalloc.Allocator) (*Space, error) {
	if store == nil || mem == nil || alloc == nil {
		return nil, fmt.Errorf("storage: nil store, memory or allocator")
	}
	return &Space{
		store: store,
		mem:   mem,
		alloc: alloc,
		cache: make(map[Slot]Slot),
		dirty: make(map[Slot]struct{}),
	}, nil
}

// Flush writes every dirty slot back to the store. On error the remaining
// dirty slots stay dirty.
func (s *Space) Flush() error {
	for slot := range s.dirty {
		if err := s.store.StoreSlot(slot, s.cache[slot]); err != nil {
			return err
		}
		delete(s.dirty, slot)
	}
	return nil
}

func (s *Space) load(slot Slot) (Slot, error) {
	if v, ok := s.cache[slot]; ok {
		return v, nil
	}
	v, err := s.store.LoadSlot(slot)
	if err != nil {
		return Slot{}, err
	}
	s.cache[slot] = v
	return v, nil
}

func (s *Space) set(slot, value Slot) {
	s.cache[slot] = value
	s.dirty[slot] = struct{}{}
}

// mapSlot derives the slot of a mapping entry as keccak256(key ++ base).
// The 64-byte preimage is staged in linear memory through an allocator
// scratch buffer, so the storage layer exercises the allocator exactly
// like any other consumer.
func (s *Space) mapSlot(base, key Slot) (Slot, error) {
	const preimage = 64
	ptr, err := s.alloc.Alloc(preimage, 1)
	if err != nil {
		return Slot{}, err
	}
	defer s.alloc.Free(ptr, preimage, 1)

	if !s.mem.Write(ptr, key[:]) || !s.mem.Write(ptr+32, base[:]) {
		return Slot{}, fmt.Errorf("storage: scratch buffer at %d out of bounds", ptr)
	}
	buf, ok := s.mem.Read(ptr, preimage)
	if !ok {
		return Slot{}, fmt.Errorf("storage: scratch buffer at %d out of bounds", ptr)
	}

	d := sha3.NewLegacyKeccak256()
	d.Write(buf)
	sum := mcache.Malloc(0, 32)
	sum = d.Sum(sum)
	var out Slot
	copy(out[:], sum)
	mcache.Free(sum)
	return out, nil
}

// Uint64 returns the fixed-width integer accessor for slot.
func (s *Space) Uint64(slot Slot) Uint64Value {
	return Uint64Value{space: s, slot: slot}
}

// Address returns the fixed-width address accessor for slot.
func (s *Space) Address(slot Slot) AddressValue {
	return AddressValue{space: s, slot: slot}
}

// Mapping returns the associative-mapping accessor rooted at slot.
func (s *Space) Mapping(slot Slot) Mapping {
	return Mapping{space: s, slot: slot}
}

// Uint64Value reads and writes a uint64 stored right-aligned in one slot.
type Uint64Value struct {
	space *Space
	slot  Slot
}

func (v Uint64Value) Get() (uint64, error) {
	w, err := v.space.load(v.slot)
	if err != nil {
		return 0, err
	}
	return new(uint256.Int).SetBytes32(w[:]).Uint64(), nil
}

func (v Uint64Value) Set(x uint64) {
	v.space.set(v.slot, uint256.NewInt(x).Bytes32())
}

// AddressValue reads and writes an Address stored right-aligned in one slot.
type AddressValue struct {
	space *Space
	slot  Slot
}

func (v AddressValue) Get() (Address, error) {
	w, err := v.space.load(v.slot)
	if err != nil {
		return Address{}, err
	}
	var a Address
	copy(a[:], w[32-len(a):])
	return a, nil
}

func (v AddressValue) Set(a Address) {
	var w Slot
	copy(w[32-len(a):], a[:])
	v.space.set(v.slot, w)
}

// Mapping is an associative mapping from 32-byte keys to 32-byte values.
// Entry slots are derived with mapSlot, so distinct mappings rooted at
// distinct base slots never collide.
type Mapping struct {
	space *Space
	slot  Slot
}

func (m Mapping) Get(key Slot) (Slot, error) {
	slot, err := m.space.mapSlot(m.slot, key)
	if err != nil {
		return Slot{}, err
	}
	return m.space.load(slot)
}

func (m Mapping) Set(key, value Slot) error {
	slot, err := m.space.mapSlot(m.slot, key)
	if err != nil {
		return err
	}
	m.space.set(slot, value)
	return nil
}
