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

// Package wazmem backs linmem.Memory with a real wasm linear memory from a
// wazero module, so the allocator exercises the actual host grow semantics
// (page-granular, zeroed, capped by the declared maximum).
package wazmem

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/cloudwego/wasmalloc/linmem"
)

// wazero's api.Memory is a superset of linmem.Memory.
var _ linmem.Memory = api.Memory(nil)

// Host owns a wazero runtime with a single memory-only module instantiated
// in it. Close it when the memory is no longer needed.
type Host struct {
	runtime wazero.Runtime
	module  api.Module
}

// New instantiates a wasm module that declares and exports one memory with
// the given page limits, and returns it wrapped in a Host.
func New(ctx context.Context, minPages, maxPages uint32) (*Host, error) {
	if maxPages > linmem.MaxPages {
		return nil, fmt.Errorf("wazmem: maxPages %d exceeds %d", maxPages, linmem.MaxPages)
	}
	if minPages > maxPages {
		return nil, fmt.Errorf("wazmem: minPages %d exceeds maxPages %d", minPages, maxPages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	mod, err := r.Instantiate(ctx, memoryModule(minPages, maxPages))
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wazmem: instantiate: %w", err)
	}
	return &Host{runtime: r, module: mod}, nil
}

// Memory returns the module's exported linear memory.
func (h *Host) Memory() linmem.Memory {
	return h.module.Memory()
}

func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// memoryModule encodes the smallest valid wasm binary that declares one
// memory with the given limits and exports it as "memory".
func memoryModule(minPages, maxPages uint32) []byte {
	// memory section body: one memory, limits with a maximum
	mem := []byte{0x01, 0x01}
	mem = appendUleb(mem, minPages)
	mem = appendUleb(mem, maxPages)

	// export section body: "memory", kind memory, index 0
	exp := []byte{0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00} // \0asm, version 1
	out = append(out, 0x05)                                       // memory section
	out = appendUleb(out, uint32(len(mem)))
	out = append(out, mem...)
	out = append(out, 0x07) // export section
	out = appendUleb(out, uint32(len(exp)))
	out = append(out, exp...)
	return out
}

func appendUleb(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}
