// offsets/offsetmap.go

package offsets

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/elliotchance/orderedmap"
	"gopkg.in/yaml.v2"
)

// Offset is one resolved symbol.
type Offset struct {
	Name string
	RVA  uint32
}

// ModuleOffsets maps symbol names to RVAs for one module, keeping the order
// in which names were first inserted.
type ModuleOffsets struct {
	m *orderedmap.OrderedMap
}

func NewModuleOffsets() *ModuleOffsets {
	return &ModuleOffsets{m: orderedmap.NewOrderedMap()}
}

// Set inserts or overwrites name. An overwrite keeps the first position.
func (o *ModuleOffsets) Set(name string, rva uint32) {
	o.m.Set(name, rva)
}

func (o *ModuleOffsets) Get(name string) (uint32, bool) {
	v, ok := o.m.Get(name)
	if !ok {
		return 0, false
	}
	return v.(uint32), true
}

func (o *ModuleOffsets) Len() int {
	return o.m.Len()
}

func (o *ModuleOffsets) Names() []string {
	keys := o.m.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names
}

// Offsets returns every entry in insertion order.
func (o *ModuleOffsets) Offsets() []Offset {
	out := make([]Offset, 0, o.m.Len())
	for _, name := range o.Names() {
		rva, _ := o.Get(name)
		out = append(out, Offset{Name: name, RVA: rva})
	}
	return out
}

func (o *ModuleOffsets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, off := range o.Offsets() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(off.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(strconv.AppendUint(nil, uint64(off.RVA), 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o *ModuleOffsets) MarshalYAML() (interface{}, error) {
	out := make(yaml.MapSlice, 0, o.m.Len())
	for _, off := range o.Offsets() {
		out = append(out, yaml.MapItem{Key: off.Name, Value: off.RVA})
	}
	return out, nil
}

// Map is the result of a build: module name to that module's offsets, in
// target order.
type Map struct {
	modules *orderedmap.OrderedMap
}

func NewMap() *Map {
	return &Map{modules: orderedmap.NewOrderedMap()}
}

func (m *Map) Set(module string, offsets *ModuleOffsets) {
	m.modules.Set(module, offsets)
}

func (m *Map) Module(name string) (*ModuleOffsets, bool) {
	v, ok := m.modules.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*ModuleOffsets), true
}

func (m *Map) Modules() []string {
	keys := m.modules.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.(string)
	}
	return names
}

func (m *Map) Len() int {
	return m.modules.Len()
}

func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.Modules() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		mod, _ := m.Module(name)
		val, err := mod.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Map) MarshalYAML() (interface{}, error) {
	out := make(yaml.MapSlice, 0, m.modules.Len())
	for _, name := range m.Modules() {
		mod, _ := m.Module(name)
		out = append(out, yaml.MapItem{Key: name, Value: mod})
	}
	return out, nil
}
