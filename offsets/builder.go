// offsets/builder.go

package offsets

import (
	"fmt"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"SigMap/memory"
	"SigMap/pattern"
	"SigMap/peview"
)

// Kinds of fatal build failures. Compare with errors.Is.
var (
	ErrModuleNotFound = errors.New("module not found")
	ErrMemoryRead     = errors.New("module read failed")
	ErrMalformedImage = errors.New("malformed module image")
)

// ModuleError reports which module stopped a build and why.
type ModuleError struct {
	Module string
	Kind   error
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Module, e.Kind, e.Err)
}

func (e *ModuleError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Build resolves every target in order against proc. Per-signature misses
// only thin out a module's entries, but a module that cannot be found, read
// or parsed aborts the whole build and no map is returned.
func Build(proc memory.Process, targets []Target, logger log.Interface) (*Map, error) {
	result := NewMap()
	for _, t := range targets {
		found, err := buildModule(proc, t, logger)
		if err != nil {
			return nil, err
		}
		result.Set(t.Module, found)
	}
	return result, nil
}

func buildModule(proc memory.Process, t Target, logger log.Interface) (*ModuleOffsets, error) {
	mod, err := proc.FindModule(t.Module)
	if err != nil {
		return nil, &ModuleError{Module: t.Module, Kind: ErrModuleNotFound, Err: err}
	}
	logger.WithFields(log.Fields{
		"module": t.Module,
		"base":   hex64(uint64(mod.Base)),
		"size":   hex(mod.Size),
	}).Debug("reading module")

	buf, err := proc.ReadBytes(mod.Base, mod.Size)
	if err != nil {
		return nil, &ModuleError{Module: t.Module, Kind: ErrMemoryRead, Err: err}
	}
	if uint32(len(buf)) != mod.Size {
		return nil, &ModuleError{
			Module: t.Module,
			Kind:   ErrMemoryRead,
			Err:    errors.Errorf("short read: got %d of %d bytes", len(buf), mod.Size),
		}
	}

	view, err := peview.Parse(buf)
	if err != nil {
		return nil, &ModuleError{Module: t.Module, Kind: ErrMalformedImage, Err: err}
	}
	logger.WithFields(log.Fields{
		"module":   t.Module,
		"pe32+":    view.Is64(),
		"sections": sectionNames(view.Sections()),
		"code":     codeSize(view.CodeRanges()),
	}).Debug("parsed module")

	return Resolve(view, t.Registry, logger), nil
}

func sectionNames(sections []peview.Section) []string {
	return lo.Map(sections, func(s peview.Section, _ int) string { return s.Name })
}

// codeSize is the number of bytes the scanner looks at.
func codeSize(ranges []pattern.Range) uint32 {
	return lo.SumBy(ranges, func(r pattern.Range) uint32 { return r.End - r.Start })
}

func hex(v uint32) string {
	return fmt.Sprintf("0x%X", v)
}

func hex64(v uint64) string {
	return fmt.Sprintf("0x%X", v)
}
