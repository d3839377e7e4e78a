//go:build linux

// memory/process_linux.go

package memory

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// readChunk bounds a single process_vm_readv call.
const readChunk = 1 << 20

// RemoteProcess reads module images of a process running under Wine or
// Proton through process_vm_readv.
type RemoteProcess struct {
	PID int
}

// OpenProcess finds program by executable name.
func OpenProcess(program string) (Process, error) {
	pid, err := FindPID(program)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"program": program, "pid": pid}).Info("found process")
	return &RemoteProcess{PID: int(pid)}, nil
}

func (p *RemoteProcess) Close() error {
	return nil
}

func (p *RemoteProcess) FindModule(name string) (ModuleInfo, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", p.PID))
	if err != nil {
		return ModuleInfo{}, errors.WithStack(err)
	}
	defer f.Close()

	maps, err := ParseMaps(f)
	if err != nil {
		return ModuleInfo{}, err
	}
	mod, ok := ModuleBounds(maps, name)
	if !ok {
		return ModuleInfo{}, errors.Wrapf(ErrModuleNotFound, "%s in process %d", name, p.PID)
	}
	return mod, nil
}

func (p *RemoteProcess) ReadBytes(address uintptr, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	for off := uint32(0); off < length; off += readChunk {
		n := min(readChunk, length-off)
		local := []unix.Iovec{{Base: &buf[off]}}
		local[0].SetLen(int(n))
		remote := []unix.RemoteIovec{{Base: address + uintptr(off), Len: int(n)}}

		read, err := unix.ProcessVMReadv(p.PID, local, remote, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "read %d bytes at 0x%X", n, address+uintptr(off))
		}
		if read != int(n) {
			return nil, errors.Errorf("short read at 0x%X: %d of %d bytes", address+uintptr(off), read, n)
		}
	}
	return buf, nil
}
