// memory/dump.go

package memory

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"SigMap/peview"
)

// dumpBase is where the first dumped module is placed. Every module gets its
// own 64K aligned slot because on-disk DLLs often share a preferred base.
const (
	dumpBase  = 0x10000000
	dumpAlign = 0x10000
)

type dumpedModule struct {
	info  ModuleInfo
	image []byte
	// err is why the file could not be loaded; reads of the module return it.
	err error
}

// DumpProcess serves module images from PE files in a directory, as if they
// were loaded in a process. Useful for offline runs against copies of the
// game binaries.
type DumpProcess struct {
	dir     string
	modules []dumpedModule
	next    uintptr
}

// OpenDump uses the PE files in dir as the module list.
func OpenDump(dir string) (Process, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !st.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}
	return &DumpProcess{dir: dir, next: dumpBase}, nil
}

func (d *DumpProcess) Close() error {
	d.modules = nil
	return nil
}

func (d *DumpProcess) FindModule(name string) (ModuleInfo, error) {
	for _, m := range d.modules {
		if strings.EqualFold(m.info.Name, name) {
			return m.info, nil
		}
	}

	path, err := d.lookup(name)
	if err != nil {
		return ModuleInfo{}, err
	}
	// The file exists, so a load failure is reported by the read.
	image, err := loadImage(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("cannot load module file")
	}

	info := ModuleInfo{Name: name, Base: d.next, Size: uint32(len(image))}
	d.next += max((uintptr(len(image))+dumpAlign-1)&^(dumpAlign-1), dumpAlign)
	d.modules = append(d.modules, dumpedModule{info: info, image: image, err: err})
	return info, nil
}

func (d *DumpProcess) ReadBytes(address uintptr, length uint32) ([]byte, error) {
	for _, m := range d.modules {
		if m.err != nil && address == m.info.Base {
			return nil, errors.Wrapf(m.err, "load %s", m.info.Name)
		}
	}
	if length == 0 {
		return []byte{}, nil
	}
	for _, m := range d.modules {
		if address < m.info.Base || address >= m.info.Base+uintptr(len(m.image)) {
			continue
		}
		off := address - m.info.Base
		if uint64(off)+uint64(length) > uint64(len(m.image)) {
			return nil, errors.Errorf("read of %d bytes at 0x%X runs past %s", length, address, m.info.Name)
		}
		return append([]byte(nil), m.image[off:off+uintptr(length)]...), nil
	}
	return nil, errors.Errorf("address 0x%X is not inside a loaded module", address)
}

// lookup resolves name inside the dump directory, ignoring case.
func (d *DumpProcess) lookup(name string) (string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), name) {
			return filepath.Join(d.dir, e.Name()), nil
		}
	}
	return "", errors.Wrapf(ErrModuleNotFound, "%s in %s", name, d.dir)
}

// loadImage maps the file at path into memory layout. Files that are not
// valid PE images are returned as-is so the parser reports them.
func loadImage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if st.Size() == 0 {
		return []byte{}, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "map %s", path)
	}
	defer data.Unmap()

	image, err := peview.MapFile(data)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("not a PE file, using raw contents")
		return append([]byte(nil), data...), nil
	}
	return image, nil
}
