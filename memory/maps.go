package memory

import (
	"bufio"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Mapping is one line of /proc/<pid>/maps.
type Mapping struct {
	Start uint64
	End   uint64
	Path  string
}

// ParseMaps reads the /proc/<pid>/maps format. Anonymous mappings keep an
// empty Path.
func ParseMaps(r io.Reader) ([]Mapping, error) {
	var maps []Mapping
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			return nil, errors.Errorf("bad address range %q", fields[0])
		}
		start, err := strconv.ParseUint(lo, 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad start address %q", lo)
		}
		end, err := strconv.ParseUint(hi, 16, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad end address %q", hi)
		}
		m := Mapping{Start: start, End: end}
		if len(fields) >= 6 {
			// Paths may contain spaces.
			m.Path = strings.Join(fields[5:], " ")
		}
		maps = append(maps, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read maps")
	}
	return maps, nil
}

// ModuleBounds finds the span covered by every mapping of the file called
// name. Wine and Proton map PE modules as regular file mappings, so the
// image runs from the lowest start to the highest end.
func ModuleBounds(maps []Mapping, name string) (ModuleInfo, bool) {
	var start, end uint64
	found := false
	for _, m := range maps {
		if m.Path == "" || !strings.EqualFold(path.Base(m.Path), name) {
			continue
		}
		if !found || m.Start < start {
			start = m.Start
		}
		if !found || m.End > end {
			end = m.End
		}
		found = true
	}
	if !found || end-start > 1<<32-1 {
		return ModuleInfo{}, false
	}
	return ModuleInfo{Name: name, Base: uintptr(start), Size: uint32(end - start)}, true
}
