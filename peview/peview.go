// peview/peview.go

package peview

import (
	"github.com/pkg/errors"
	pe "github.com/saferwall/pe"

	"SigMap/pattern"
)

// Section characteristic bits that mark a section as code.
const (
	scnCntCode    = 0x00000020
	scnMemExecute = 0x20000000
)

// Section is the subset of a section header the scanner needs.
type Section struct {
	Name            string
	VirtualAddress  uint32
	VirtualSize     uint32
	Characteristics uint32
}

// IsCode reports whether the section holds executable code.
func (s Section) IsCode() bool {
	return s.Characteristics&(scnCntCode|scnMemExecute) != 0
}

// View is a parsed module image in memory layout, where every RVA indexes
// straight into the byte buffer.
type View struct {
	data      []byte
	imageBase uint64
	is64      bool
	sections  []Section
	code      []pattern.Range
}

// Parse reads the PE headers of a module image that was copied out of a
// process (memory layout). Only headers are parsed; data directories are
// left alone because loaded images no longer match their file offsets.
func Parse(data []byte) (*View, error) {
	file, err := pe.NewBytes(data, parseOptions())
	if err != nil {
		return nil, errors.Wrap(err, "open pe image")
	}
	if err := file.Parse(); err != nil {
		return nil, errors.Wrap(err, "parse pe headers")
	}

	v := &View{data: data, is64: file.Is64}
	switch oh := file.NtHeader.OptionalHeader.(type) {
	case pe.ImageOptionalHeader64:
		v.imageBase = oh.ImageBase
	case *pe.ImageOptionalHeader64:
		v.imageBase = oh.ImageBase
	case pe.ImageOptionalHeader32:
		v.imageBase = uint64(oh.ImageBase)
	case *pe.ImageOptionalHeader32:
		v.imageBase = uint64(oh.ImageBase)
	default:
		return nil, errors.Errorf("unsupported optional header %T", oh)
	}

	for _, s := range file.Sections {
		h := s.Header
		sec := Section{
			Name:            sectionName(h.Name),
			VirtualAddress:  h.VirtualAddress,
			VirtualSize:     h.VirtualSize,
			Characteristics: h.Characteristics,
		}
		if sec.VirtualSize == 0 {
			sec.VirtualSize = h.SizeOfRawData
		}
		v.sections = append(v.sections, sec)

		if !sec.IsCode() {
			continue
		}
		start, end := uint64(sec.VirtualAddress), uint64(sec.VirtualAddress)+uint64(sec.VirtualSize)
		if end > uint64(len(data)) {
			end = uint64(len(data))
		}
		if start >= end {
			continue
		}
		v.code = append(v.code, pattern.Range{Start: uint32(start), End: uint32(end)})
	}

	if len(v.code) == 0 {
		return nil, errors.New("image has no code section inside the buffer")
	}
	return v, nil
}

// FromBytes wraps a raw buffer with no container. The whole buffer is
// treated as code and the image base is zero.
func FromBytes(data []byte) *View {
	return &View{
		data: data,
		is64: true,
		code: []pattern.Range{{Start: 0, End: uint32(len(data))}},
	}
}

// ImageBase is the preferred base address from the optional header. Only
// needed to turn RVAs back into absolute addresses.
func (v *View) ImageBase() uint64 { return v.imageBase }

// Is64 reports whether the image is PE32+.
func (v *View) Is64() bool { return v.is64 }

// Size is the length of the image in bytes.
func (v *View) Size() uint32 { return uint32(len(v.data)) }

// Bytes returns the underlying image. Callers must not modify it.
func (v *View) Bytes() []byte { return v.data }

// Sections returns the parsed section headers in table order.
func (v *View) Sections() []Section {
	return append([]Section(nil), v.sections...)
}

// CodeRanges returns the RVA ranges that are scanned for matches.
func (v *View) CodeRanges() []pattern.Range {
	return append([]pattern.Range(nil), v.code...)
}

// Contains reports whether rva lies inside the image.
func (v *View) Contains(rva uint32) bool {
	return uint64(rva) < uint64(len(v.data))
}

// Scan finds the first match of p in the code sections.
func (v *View) Scan(p *pattern.Pattern) ([]uint32, bool) {
	return pattern.Find(v.image(), p, v.code...)
}

// ScanFrom finds the first match of p starting at rva and running to the
// end of the code range that contains rva.
func (v *View) ScanFrom(p *pattern.Pattern, rva uint32) ([]uint32, bool) {
	for _, r := range v.code {
		if rva >= r.Start && rva < r.End {
			return pattern.Find(v.image(), p, pattern.Range{Start: rva, End: r.End})
		}
	}
	return nil, false
}

func (v *View) image() pattern.Image {
	ptr := 8
	if !v.is64 {
		ptr = 4
	}
	return pattern.Image{Data: v.data, ImageBase: v.imageBase, PtrSize: ptr}
}
