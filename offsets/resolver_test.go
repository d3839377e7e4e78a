package offsets

import (
	"encoding/json"
	"testing"

	"github.com/apex/log"
	discardhandler "github.com/apex/log/handlers/discard"
	memhandler "github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/require"

	"SigMap/peview"
)

func discard() log.Interface {
	return &log.Logger{Handler: discardHandler, Level: log.DebugLevel}
}

var discardHandler = discardhandler.New()

func recorder() (log.Interface, *memhandler.Handler) {
	h := memhandler.New()
	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}

func entriesAt(h *memhandler.Handler, level log.Level) []*log.Entry {
	var out []*log.Entry
	for _, e := range h.Entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func TestResolveWildcardSave(t *testing.T) {
	reg := MustRegistry("test.dll", Sig("foo", "AA BB ' ? DD"))
	view := peview.FromBytes([]byte{0x00, 0xAA, 0xBB, 0x7F, 0xDD, 0x00})

	found := Resolve(view, reg, discard())
	require.Equal(t, []Offset{{Name: "foo", RVA: 3}}, found.Offsets())

	reg = MustRegistry("test.dll", Sig("foo", "AA BB ' ?? DD"))
	found = Resolve(view, reg, discard())
	require.Equal(t, []Offset{{Name: "foo", RVA: 3}}, found.Offsets())
}

func TestResolveOutdatedPattern(t *testing.T) {
	reg := MustRegistry("test.dll", Sig("foo", "AA BB ' ? DD"))
	view := peview.FromBytes([]byte{0x00, 0xAA, 0xBC, 0x7F, 0xDD, 0x00})
	logger, h := recorder()

	found := Resolve(view, reg, logger)
	require.Equal(t, 0, found.Len())

	errs := entriesAt(h, log.ErrorLevel)
	require.Len(t, errs, 1)
	require.Equal(t, "outdated pattern", errs[0].Message)
	require.Equal(t, "foo", errs[0].Fields.Get("name"))
	require.Equal(t, "test.dll", errs[0].Fields.Get("module"))
}

func TestResolveSkipsOnlyStaleEntries(t *testing.T) {
	reg := MustRegistry("test.dll",
		Sig("first", "11 '"),
		Sig("stale", "FE FE '"),
		Sig("last", "22 ' 33"),
	)
	view := peview.FromBytes([]byte{0x11, 0x00, 0x22, 0x33})
	logger, h := recorder()

	found := Resolve(view, reg, logger)
	require.Equal(t, []Offset{{Name: "first", RVA: 1}, {Name: "last", RVA: 3}}, found.Offsets())
	require.Equal(t, []string{"stale"}, reg.Missing(found))
	require.Len(t, entriesAt(h, log.ErrorLevel), 1)
	require.Len(t, entriesAt(h, log.DebugLevel), 2)
}

func TestResolveIsIdempotent(t *testing.T) {
	reg := MustRegistry("test.dll",
		Sig("a", "AA ' BB"),
		Sig("b", "BB u1"),
	)
	view := peview.FromBytes([]byte{0xAA, 0xBB, 0x42, 0xAA, 0xBB, 0x43})

	first, err := json.Marshal(Resolve(view, reg, discard()))
	require.NoError(t, err)
	second, err := json.Marshal(Resolve(view, reg, discard()))
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
	require.Equal(t, `{"a":1,"b":66}`, string(first))
}

func TestResolveDerivedField(t *testing.T) {
	code := make([]byte, 0x100)
	// A field load before the anchor that must not be picked up.
	copy(code[0x00:], []byte{0xF2, 0x42, 0x0F, 0x10, 0x84, 0x28, 0x11, 0x11, 0x00, 0x00})
	// mov [rip+0x69], rax -> 0x80
	copy(code[0x10:], []byte{0x48, 0x89, 0x05, 0x69, 0x00, 0x00, 0x00, 0x0F, 0x57, 0xC0})
	copy(code[0x20:], []byte{0xF2, 0x42, 0x0F, 0x10, 0x84, 0x28, 0x90, 0x53, 0x00, 0x00})

	reg := MustRegistry("client.dll",
		Sig("dwInput", "488905${'} 0f57c0").
			WithRule(FieldFrom("dwViewAngles", "f2420f108428u4")),
	)
	found := Resolve(peview.FromBytes(code), reg, discard())
	require.Equal(t, []Offset{
		{Name: "dwInput", RVA: 0x80},
		{Name: "dwViewAngles", RVA: 0x80 + 0x5390},
	}, found.Offsets())
}

func TestResolveDerivedFieldMiss(t *testing.T) {
	code := []byte{0x48, 0x89, 0x05, 0x01, 0x00, 0x00, 0x00, 0x0F, 0x57, 0xC0}
	reg := MustRegistry("client.dll",
		Sig("dwInput", "488905${'} 0f57c0").
			WithRule(FieldFrom("dwViewAngles", "f2420f108428u4")),
	)
	found := Resolve(peview.FromBytes(code), reg, discard())
	require.Equal(t, []string{"dwInput"}, found.Names())
}

func TestResolveRuleNeedsAnchor(t *testing.T) {
	calls := 0
	rule := RuleFunc(func(_ *peview.View, _ *ModuleOffsets, _ Match) []Derived {
		calls++
		return []Derived{{Name: "derived", RVA: 1}}
	})
	reg := MustRegistry("test.dll", Sig("anchor", "AA '").WithRule(rule))

	found := Resolve(peview.FromBytes([]byte{0x00, 0x00}), reg, discard())
	require.Equal(t, 0, calls)
	require.Equal(t, 0, found.Len())

	found = Resolve(peview.FromBytes([]byte{0xAA, 0x00}), reg, discard())
	require.Equal(t, 1, calls)
	require.Equal(t, []string{"anchor", "derived"}, found.Names())
}

func TestResolveRuleSkippedOutsideImage(t *testing.T) {
	calls := 0
	rule := RuleFunc(func(_ *peview.View, _ *ModuleOffsets, _ Match) []Derived {
		calls++
		return nil
	})
	reg := MustRegistry("test.dll", Sig("anchor", "AA u4").WithRule(rule))
	logger, h := recorder()

	found := Resolve(peview.FromBytes([]byte{0xAA, 0xFF, 0xFF, 0xFF, 0x7F}), reg, logger)
	require.Equal(t, 0, calls)

	rva, ok := found.Get("anchor")
	require.True(t, ok)
	require.Equal(t, uint32(0x7FFFFFFF), rva)
	require.Len(t, entriesAt(h, log.WarnLevel), 1)
}

func TestResolveRuleSeesEarlierOffsets(t *testing.T) {
	var seen []string
	rule := RuleFunc(func(_ *peview.View, found *ModuleOffsets, m Match) []Derived {
		seen = found.Names()
		return []Derived{{Name: "first", RVA: m.RVA + 0x100}}
	})
	reg := MustRegistry("test.dll",
		Sig("first", "11 '"),
		Sig("second", "22 '").WithRule(rule),
	)

	found := Resolve(peview.FromBytes([]byte{0x11, 0x22, 0x00}), reg, discard())
	require.Equal(t, []string{"first", "second"}, seen)
	// Derived values overwrite in place.
	require.Equal(t, []Offset{{Name: "first", RVA: 0x102}, {Name: "second", RVA: 2}}, found.Offsets())
}

func TestResolveDerivedFieldFarFromAnchor(t *testing.T) {
	code := make([]byte, 0x20000)
	copy(code[0x10:], []byte{0x48, 0x89, 0x05, 0x69, 0x00, 0x00, 0x00, 0x0F, 0x57, 0xC0})
	copy(code[0x1F000:], []byte{0xF2, 0x42, 0x0F, 0x10, 0x84, 0x28, 0x08, 0x00, 0x00, 0x00})

	reg := MustRegistry("client.dll",
		Sig("dwInput", "488905${'} 0f57c0").
			WithRule(FieldFrom("dwViewAngles", "f2420f108428u4")),
	)
	found := Resolve(peview.FromBytes(code), reg, discard())
	rva, ok := found.Get("dwViewAngles")
	require.True(t, ok)
	require.Equal(t, uint32(0x88), rva)
}
