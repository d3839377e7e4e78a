package offsets

import (
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/require"

	"SigMap/internal/petest"
	"SigMap/peview"
)

const (
	anchorAt  = 0x10
	fieldAt   = 0x800
	scratchAt = 0x2000
)

// Every shipped signature resolves against a buffer holding exactly one
// occurrence of it, and goes stale once a fixed byte changes.
func TestShippedSignatures(t *testing.T) {
	for _, target := range Targets() {
		for _, e := range target.Registry.entries {
			t.Run(target.Module+"/"+e.Name, func(t *testing.T) {
				buf := make([]byte, 0x4000)
				anchor := petest.Embed(buf, e.Pattern, anchorAt, scratchAt)
				rva := anchor.Saves[e.Slot]
				want := []Offset{{Name: e.Name, RVA: rva}}

				if rule, ok := e.Derive.(fieldRule); ok {
					field := petest.Embed(buf, rule.pattern, fieldAt, anchor.Scratch)
					want = append(want, Offset{Name: rule.name, RVA: rva + field.Saves[rule.slot]})
				}

				reg := MustRegistry(target.Module, e)
				found := Resolve(peview.FromBytes(buf), reg, discard())
				require.Equal(t, want, found.Offsets())

				buf[anchor.Fixed[0]] ^= 0xFF
				logger, h := recorder()
				found = Resolve(peview.FromBytes(buf), reg, logger)
				require.Equal(t, 0, found.Len())

				errs := entriesAt(h, log.ErrorLevel)
				require.Len(t, errs, 1)
				require.Equal(t, "outdated pattern", errs[0].Message)
				require.Equal(t, e.Name, errs[0].Fields.Get("name"))
			})
		}
	}
}

func TestShippedTablesSize(t *testing.T) {
	counts := map[string]int{}
	rules := 0
	for _, target := range Targets() {
		counts[target.Module] = len(target.Registry.entries)
		for _, e := range target.Registry.entries {
			if e.Derive != nil {
				rules++
			}
		}
	}
	require.Equal(t, map[string]int{
		"client.dll":      15,
		"engine2.dll":     11,
		"inputsystem.dll": 1,
		"matchmaking.dll": 1,
		"soundsystem.dll": 2,
	}, counts)
	require.Equal(t, 2, rules)
}
