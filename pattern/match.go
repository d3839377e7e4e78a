// pattern/match.go

package pattern

import (
	"bytes"
	"encoding/binary"
)

// Image is a module in memory layout: Data[rva] is the byte at that RVA.
// ImageBase and PtrSize are only consulted by '*' atoms.
type Image struct {
	Data      []byte
	ImageBase uint64
	PtrSize   int
}

// Range is a half-open RVA interval to scan for match starts.
type Range struct {
	Start uint32
	End   uint32
}

// Find returns the save slots of the first match of p whose start lies in
// one of ranges, trying ranges in order and positions left to right. With
// no ranges the whole image is scanned. Jumps and reads may leave the
// ranges but never the image.
func Find(img Image, p *Pattern, ranges ...Range) ([]uint32, bool) {
	if len(ranges) == 0 {
		ranges = []Range{{0, uint32(len(img.Data))}}
	}

	saves := make([]uint32, p.SaveLen())
	for _, r := range ranges {
		end := uint64(r.End)
		if end > uint64(len(img.Data)) {
			end = uint64(len(img.Data))
		}
		for pos := uint64(r.Start); pos < end; pos++ {
			if first := p.atoms[0]; first.Op == OpByte {
				idx := bytes.IndexByte(img.Data[pos:end], first.Value)
				if idx < 0 {
					break
				}
				pos += uint64(idx)
			}
			if p.exec(img, uint32(pos), saves) {
				return saves, true
			}
		}
	}
	return nil, false
}

func (p *Pattern) exec(img Image, start uint32, saves []uint32) bool {
	data := img.Data
	size := uint64(len(data))
	cursor := uint64(start)
	slot := 1
	var stack []uint64

	saves[0] = start
	for i, a := range p.atoms {
		pushNext := i+1 < len(p.atoms) && p.atoms[i+1].Op == OpPush

		switch a.Op {
		case OpByte:
			if cursor >= size || data[cursor] != a.Value {
				return false
			}
			cursor++

		case OpSkip:
			cursor += uint64(a.N)
			if cursor > size {
				return false
			}

		case OpSave:
			saves[slot] = uint32(cursor)
			slot++

		case OpJump1, OpJump4:
			width := uint64(1)
			if a.Op == OpJump4 {
				width = 4
			}
			if cursor+width > size {
				return false
			}
			var disp int64
			if width == 1 {
				disp = int64(int8(data[cursor]))
			} else {
				disp = int64(int32(binary.LittleEndian.Uint32(data[cursor:])))
			}
			next := cursor + width
			if pushNext {
				stack = append(stack, next)
			}
			target := int64(next) + disp
			if target < 0 || uint64(target) >= size {
				return false
			}
			cursor = uint64(target)

		case OpPtr:
			width := uint64(img.PtrSize)
			if width != 4 {
				width = 8
			}
			if cursor+width > size {
				return false
			}
			var va uint64
			if width == 4 {
				va = uint64(binary.LittleEndian.Uint32(data[cursor:]))
			} else {
				va = binary.LittleEndian.Uint64(data[cursor:])
			}
			if pushNext {
				stack = append(stack, cursor+width)
			}
			if va < img.ImageBase || va-img.ImageBase >= size {
				return false
			}
			cursor = va - img.ImageBase

		case OpPush:

		case OpPop:
			cursor = stack[len(stack)-1]
			stack = stack[:len(stack)-1]

		case OpRead:
			if cursor+uint64(a.N) > size {
				return false
			}
			saves[slot] = readImm(data[cursor:], a.N, a.Signed)
			slot++
			cursor += uint64(a.N)
		}
	}
	return true
}

func readImm(b []byte, n uint32, signed bool) uint32 {
	switch n {
	case 1:
		if signed {
			return uint32(int32(int8(b[0])))
		}
		return uint32(b[0])
	case 2:
		v := binary.LittleEndian.Uint16(b)
		if signed {
			return uint32(int32(int16(v)))
		}
		return uint32(v)
	default:
		return binary.LittleEndian.Uint32(b)
	}
}
