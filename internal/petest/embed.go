package petest

import (
	"encoding/binary"
	"fmt"

	"SigMap/pattern"
)

// ScratchBlock is the room reserved at each rel32 jump target.
const ScratchBlock = 0x100

// Embedding describes one occurrence of a pattern written by Embed.
type Embedding struct {
	// Saves holds the slot values a scan is expected to produce.
	Saves []uint32
	// Fixed lists the offsets of every fixed byte that was written.
	Fixed []uint32
	// Scratch is the first scratch offset left unused.
	Scratch uint32
}

// Embed writes one occurrence of p into buf starting at start. Each rel32
// jump points at a fresh ScratchBlock taken from scratch, wildcards are left
// as they are and reads are filled with small distinct values.
func Embed(buf []byte, p *pattern.Pattern, start, scratch uint32) Embedding {
	e := Embedding{Saves: make([]uint32, p.SaveLen())}
	e.Saves[0] = start

	atoms := p.Atoms()
	cursor := start
	slot := 1
	var stack []uint32
	for i, a := range atoms {
		switch a.Op {
		case pattern.OpByte:
			buf[cursor] = a.Value
			e.Fixed = append(e.Fixed, cursor)
			cursor++

		case pattern.OpSkip:
			cursor += a.N

		case pattern.OpSave:
			e.Saves[slot] = cursor
			slot++

		case pattern.OpJump4:
			target := scratch
			scratch += ScratchBlock
			binary.LittleEndian.PutUint32(buf[cursor:], target-(cursor+4))
			if i+1 < len(atoms) && atoms[i+1].Op == pattern.OpPush {
				stack = append(stack, cursor+4)
			}
			cursor = target

		case pattern.OpPush:

		case pattern.OpPop:
			cursor = stack[len(stack)-1]
			stack = stack[:len(stack)-1]

		case pattern.OpRead:
			v := uint32(0x20 + slot)
			for k := uint32(0); k < a.N; k++ {
				buf[cursor+k] = byte(v >> (8 * k))
			}
			e.Saves[slot] = v
			slot++
			cursor += a.N

		default:
			panic(fmt.Sprintf("petest: cannot embed op %d of %q", a.Op, p))
		}
	}

	e.Scratch = scratch
	return e
}
