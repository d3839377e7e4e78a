// peview/layout.go

package peview

import (
	"github.com/pkg/errors"
	pe "github.com/saferwall/pe"
)

// maxImageSize guards against absurd SizeOfImage values in damaged files.
const maxImageSize = 1 << 30

// MapFile lays a PE file out the way the loader would: headers at RVA 0 and
// each section's raw data at its VirtualAddress. The result can be handed
// to Parse like a module read from a live process. Relocations and imports
// are not applied; signatures only care about code bytes.
func MapFile(data []byte) ([]byte, error) {
	file, err := pe.NewBytes(data, parseOptions())
	if err != nil {
		return nil, errors.Wrap(err, "open pe file")
	}
	if err := file.Parse(); err != nil {
		return nil, errors.Wrap(err, "parse pe headers")
	}

	var sizeOfImage, sizeOfHeaders uint32
	switch oh := file.NtHeader.OptionalHeader.(type) {
	case pe.ImageOptionalHeader64:
		sizeOfImage, sizeOfHeaders = oh.SizeOfImage, oh.SizeOfHeaders
	case *pe.ImageOptionalHeader64:
		sizeOfImage, sizeOfHeaders = oh.SizeOfImage, oh.SizeOfHeaders
	case pe.ImageOptionalHeader32:
		sizeOfImage, sizeOfHeaders = oh.SizeOfImage, oh.SizeOfHeaders
	case *pe.ImageOptionalHeader32:
		sizeOfImage, sizeOfHeaders = oh.SizeOfImage, oh.SizeOfHeaders
	default:
		return nil, errors.Errorf("unsupported optional header %T", oh)
	}
	if sizeOfImage == 0 || sizeOfImage > maxImageSize {
		return nil, errors.Errorf("bad SizeOfImage 0x%X", sizeOfImage)
	}

	image := make([]byte, sizeOfImage)
	copy(image, data[:min(uint64(sizeOfHeaders), uint64(len(data)), uint64(sizeOfImage))])

	for _, s := range file.Sections {
		h := s.Header
		if h.SizeOfRawData == 0 {
			continue
		}
		raw := uint64(h.PointerToRawData)
		if raw >= uint64(len(data)) {
			return nil, errors.Errorf("section %q raw data at 0x%X is past the end of the file", sectionName(h.Name), raw)
		}
		if uint64(h.VirtualAddress) >= uint64(sizeOfImage) {
			return nil, errors.Errorf("section %q at RVA 0x%X is outside SizeOfImage", sectionName(h.Name), h.VirtualAddress)
		}

		n := uint64(h.SizeOfRawData)
		if h.VirtualSize != 0 && uint64(h.VirtualSize) < n {
			n = uint64(h.VirtualSize)
		}
		n = min(n, uint64(len(data))-raw, uint64(sizeOfImage)-uint64(h.VirtualAddress))
		copy(image[h.VirtualAddress:], data[raw:raw+n])
	}
	return image, nil
}

func sectionName(name [8]uint8) string {
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return string(name[:n])
}
