package segalloc

import (
	"fmt"

	"github.com/cloudwego/wasmalloc/linmem"
)

func Example() {
	mem, _ := linmem.NewSlice(0, 1024)
	a, _ := New(mem, 0)

	p1, _ := a.Alloc(100, 8) // 128-byte slot
	p2, _ := a.Alloc(100, 8) // bumped within the same page-group

	fmt.Printf("p1: %d\n", p1)
	fmt.Printf("p2: %d\n", p2)
	fmt.Printf("in place: %v\n", a.Resize(p1, 100, 8, 120))

	a.Free(p2, 100, 8)
	a.Free(p1, 100, 8)

	// Output:
	// p1: 262144
	// p2: 262272
	// in place: true
}
