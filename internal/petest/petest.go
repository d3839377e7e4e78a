// Package petest builds small synthetic PE32+ images for tests.
package petest

import (
	"bytes"
	"encoding/binary"
)

const (
	DefaultImageBase = 0x180000000
	sectionAlign     = 0x1000
	textRVA          = 0x1000
	lfanew           = 0x80
)

type fileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type dataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

type optionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [16]dataDirectory
}

type sectionHeader struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

// Options controls the generated image.
type Options struct {
	ImageBase uint64
	// Text is placed at RVA 0x1000 in an executable section.
	Text []byte
	// Data, if set, follows in a read/write section.
	Data []byte
	// FileAlignment 0 produces an image whose file layout already equals
	// its memory layout. Use 0x200 to get a packed on-disk file.
	FileAlignment uint32
}

// TextRVA is where Options.Text starts in the mapped image.
func TextRVA() uint32 { return textRVA }

// DataRVA is where Options.Data starts in the mapped image.
func DataRVA(opts Options) uint32 {
	return textRVA + align(uint32(len(opts.Text)), sectionAlign)
}

// Build returns the PE file bytes.
func Build(opts Options) []byte {
	if opts.ImageBase == 0 {
		opts.ImageBase = DefaultImageBase
	}
	fileAlign := opts.FileAlignment
	if fileAlign == 0 {
		fileAlign = sectionAlign
	}
	if len(opts.Text) == 0 {
		opts.Text = []byte{0xC3}
	}

	type section struct {
		name  string
		data  []byte
		flags uint32
	}
	sections := []section{{".text", opts.Text, 0x60000020}}
	if len(opts.Data) > 0 {
		sections = append(sections, section{".data", opts.Data, 0xC0000040})
	}

	sizeOfHeaders := align(lfanew+4+20+240+uint32(len(sections))*40, fileAlign)
	rva := uint32(textRVA)
	raw := sizeOfHeaders
	headers := make([]sectionHeader, len(sections))
	for i, s := range sections {
		h := sectionHeader{
			VirtualSize:      uint32(len(s.data)),
			VirtualAddress:   rva,
			SizeOfRawData:    align(uint32(len(s.data)), fileAlign),
			PointerToRawData: raw,
			Characteristics:  s.flags,
		}
		copy(h.Name[:], s.name)
		headers[i] = h
		rva += align(uint32(len(s.data)), sectionAlign)
		raw += h.SizeOfRawData
	}

	oh := optionalHeader64{
		Magic:                       0x20B,
		MajorLinkerVersion:          14,
		SizeOfCode:                  headers[0].SizeOfRawData,
		AddressOfEntryPoint:         textRVA,
		BaseOfCode:                  textRVA,
		ImageBase:                   opts.ImageBase,
		SectionAlignment:            sectionAlign,
		FileAlignment:               fileAlign,
		MajorOperatingSystemVersion: 6,
		MajorSubsystemVersion:       6,
		SizeOfImage:                 rva,
		SizeOfHeaders:               sizeOfHeaders,
		Subsystem:                   2,
		DllCharacteristics:          0x8160,
		SizeOfStackReserve:          0x100000,
		SizeOfStackCommit:           0x1000,
		SizeOfHeapReserve:           0x100000,
		SizeOfHeapCommit:            0x1000,
		NumberOfRvaAndSizes:         16,
	}

	var buf bytes.Buffer
	dos := make([]byte, lfanew)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3C:], lfanew)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")
	_ = binary.Write(&buf, binary.LittleEndian, fileHeader{
		Machine:              0x8664,
		NumberOfSections:     uint16(len(sections)),
		SizeOfOptionalHeader: 240,
		Characteristics:      0x2022,
	})
	_ = binary.Write(&buf, binary.LittleEndian, oh)
	for _, h := range headers {
		_ = binary.Write(&buf, binary.LittleEndian, h)
	}

	out := make([]byte, raw)
	copy(out, buf.Bytes())
	for i, s := range sections {
		copy(out[headers[i].PointerToRawData:], s.data)
	}
	return out
}

// Image returns the module as the loader would map it. With the default
// file alignment this is the same as Build.
func Image(opts Options) []byte {
	opts.FileAlignment = 0
	return Build(opts)
}

func align(n, to uint32) uint32 {
	if n == 0 {
		return to
	}
	return (n + to - 1) / to * to
}
