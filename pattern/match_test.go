package pattern

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindCapturesWildcardAddress(t *testing.T) {
	img := Image{Data: []byte{0x00, 0xAA, 0xBB, 0x7F, 0xDD, 0x00}}

	saves, ok := Find(img, MustParse("AA BB ' ? DD"))
	require.True(t, ok)
	require.Equal(t, []uint32{1, 3}, saves)
}

func TestFindFixedByteMismatch(t *testing.T) {
	img := Image{Data: []byte{0x00, 0xAA, 0xCC, 0x7F, 0xDD}}

	saves, ok := Find(img, MustParse("AA BB ' ? DD"))
	require.False(t, ok)
	require.Nil(t, saves)
}

func TestFindFirstMatchWins(t *testing.T) {
	img := Image{Data: []byte{0x90, 0xAA, 0x01, 0x90, 0xAA, 0x02}}

	saves, ok := Find(img, MustParse("AA '?"))
	require.True(t, ok)
	require.Equal(t, uint32(2), saves[1])
}

func TestFindLeadingWildcard(t *testing.T) {
	img := Image{Data: []byte{0x11, 0x22, 0x33, 0x44}}

	saves, ok := Find(img, MustParse("? ' 33"))
	require.True(t, ok)
	require.Equal(t, []uint32{1, 2}, saves)
}

func TestFindRespectsRanges(t *testing.T) {
	img := Image{Data: []byte{0xAA, 0x00, 0x00, 0xAA, 0x00}}

	saves, ok := Find(img, MustParse("AA"), Range{Start: 1, End: 5})
	require.True(t, ok)
	require.Equal(t, uint32(3), saves[0])

	_, ok = Find(img, MustParse("AA"), Range{Start: 1, End: 3})
	require.False(t, ok)
}

func TestFindFollowsRel32(t *testing.T) {
	// mov [rip+disp32], rax ; xorps xmm0, xmm0
	data := make([]byte, 0x100)
	copy(data[0x10:], []byte{0x48, 0x89, 0x05})
	binary.LittleEndian.PutUint32(data[0x13:], 0x80-0x17)
	copy(data[0x17:], []byte{0x0F, 0x57, 0xC0})

	saves, ok := Find(Image{Data: data}, MustParse("488905${'} 0f57c0"))
	require.True(t, ok)
	require.Equal(t, []uint32{0x10, 0x80}, saves)
}

func TestFindFollowsNegativeRel32(t *testing.T) {
	data := make([]byte, 0x100)
	copy(data[0x40:], []byte{0x48, 0x8D, 0x0D})
	disp := int32(0x08 - 0x47)
	binary.LittleEndian.PutUint32(data[0x43:], uint32(disp))

	saves, ok := Find(Image{Data: data}, MustParse("488d0d${[8]'}"))
	require.True(t, ok)
	require.Equal(t, uint32(0x10), saves[1])
}

func TestFindJumpOutOfImageFails(t *testing.T) {
	data := make([]byte, 0x20)
	copy(data[0x04:], []byte{0xE8})
	binary.LittleEndian.PutUint32(data[0x05:], 0x1000)

	_, ok := Find(Image{Data: data}, MustParse("e8 $ '"))
	require.False(t, ok)
}

func TestFindRel8(t *testing.T) {
	data := []byte{0xEB, 0x02, 0x00, 0x00, 0xC3}

	saves, ok := Find(Image{Data: data}, MustParse("eb % ' c3"))
	require.True(t, ok)
	require.Equal(t, uint32(4), saves[1])
}

func TestFindReadsImmediates(t *testing.T) {
	data := []byte{0x90, 0xFF, 0x81, 0x20, 0x15, 0x00, 0x00, 0x48, 0x85, 0xD2, 0xFE}

	saves, ok := Find(Image{Data: data}, MustParse("ff81u4 4885d2 i1"))
	require.True(t, ok)
	require.Equal(t, []uint32{1, 0x1520, 0xFFFFFFFE}, saves)
}

func TestFindAbsolutePointer(t *testing.T) {
	data := make([]byte, 0x40)
	data[0] = 0xB8
	binary.LittleEndian.PutUint64(data[1:], 0x180000000+0x30)
	data[9] = 0xC3

	img := Image{Data: data, ImageBase: 0x180000000, PtrSize: 8}
	saves, ok := Find(img, MustParse("b8 *{'} c3"))
	require.True(t, ok)
	require.Equal(t, uint32(0x30), saves[1])

	img.ImageBase = 0x140000000
	_, ok = Find(img, MustParse("b8 *{'} c3"))
	require.False(t, ok)
}

func TestFindDeterministic(t *testing.T) {
	data := []byte{0x00, 0xAA, 0xBB, 0x7F, 0xDD, 0x00, 0xAA, 0xBB, 0x01, 0xDD}
	p := MustParse("AA BB ' ? DD")

	first, ok := Find(Image{Data: data}, p)
	require.True(t, ok)
	second, ok := Find(Image{Data: data}, p)
	require.True(t, ok)
	require.Equal(t, first, second)
}
