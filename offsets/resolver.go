// offsets/resolver.go

package offsets

import (
	"github.com/apex/log"

	"SigMap/peview"
)

// Resolve runs every signature of reg against view in registration order.
// A signature that no longer matches is logged and skipped; the returned
// map simply lacks that name.
func Resolve(view *peview.View, reg *Registry, logger log.Interface) *ModuleOffsets {
	found := NewModuleOffsets()
	ctx := logger.WithField("module", reg.Module())

	for _, e := range reg.entries {
		saves, ok := view.Scan(e.Pattern)
		if !ok {
			ctx.WithField("name", e.Name).Error("outdated pattern")
			continue
		}

		rva := saves[e.Slot]
		found.Set(e.Name, rva)

		if e.Derive == nil {
			continue
		}
		if !view.Contains(rva) {
			ctx.WithFields(log.Fields{
				"name": e.Name,
				"rva":  hex(rva),
			}).Warn("offset outside image, skipping derived offsets")
			continue
		}
		for _, d := range e.Derive.Derive(view, found, Match{RVA: rva, Saves: saves}) {
			found.Set(d.Name, d.RVA)
		}
	}

	for _, off := range found.Offsets() {
		ctx.WithFields(log.Fields{
			"name":     off.Name,
			"address":  hex64(view.ImageBase() + uint64(off.RVA)),
			"relative": hex(off.RVA),
		}).Debug("found offset")
	}
	return found
}
