//go:build windows

// memory/process_windows.go

package memory

import (
	"strings"
	"unsafe"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// readChunk bounds a single ReadProcessMemory call.
const readChunk = 1 << 20

// RemoteProcess reads module images out of a live Windows process.
type RemoteProcess struct {
	PID      uint32
	HProcess windows.Handle
}

// OpenProcess finds program by executable name and opens it for reading.
func OpenProcess(program string) (Process, error) {
	pid, err := FindPID(program)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"program": program, "pid": pid}).Info("found process")

	hProcess, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, pid)
	if err != nil {
		return nil, errors.Wrapf(err, "open process %d", pid)
	}
	return &RemoteProcess{PID: pid, HProcess: hProcess}, nil
}

func (p *RemoteProcess) Close() error {
	return windows.CloseHandle(p.HProcess)
}

func (p *RemoteProcess) FindModule(name string) (ModuleInfo, error) {
	hMods := make([]windows.Handle, 1024)
	var cbNeeded uint32
	if err := windows.EnumProcessModules(p.HProcess, &hMods[0], uint32(len(hMods))*uint32(unsafe.Sizeof(hMods[0])), &cbNeeded); err != nil {
		return ModuleInfo{}, errors.Wrap(err, "enumerate modules")
	}
	numMods := cbNeeded / uint32(unsafe.Sizeof(hMods[0]))
	if numMods > uint32(len(hMods)) {
		numMods = uint32(len(hMods))
	}
	for i := uint32(0); i < numMods; i++ {
		var modName [windows.MAX_PATH]uint16
		if err := windows.GetModuleBaseName(p.HProcess, hMods[i], &modName[0], windows.MAX_PATH); err != nil {
			continue
		}
		if !strings.EqualFold(windows.UTF16ToString(modName[:]), name) {
			continue
		}
		var modInfo windows.ModuleInfo
		if err := windows.GetModuleInformation(p.HProcess, hMods[i], &modInfo, uint32(unsafe.Sizeof(modInfo))); err != nil {
			return ModuleInfo{}, errors.Wrapf(err, "module information for %s", name)
		}
		return ModuleInfo{Name: name, Base: modInfo.BaseOfDll, Size: modInfo.SizeOfImage}, nil
	}
	return ModuleInfo{}, errors.Wrapf(ErrModuleNotFound, "%s in process %d", name, p.PID)
}

func (p *RemoteProcess) ReadBytes(address uintptr, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	for off := uint32(0); off < length; off += readChunk {
		n := min(readChunk, length-off)
		var bytesRead uintptr
		err := windows.ReadProcessMemory(p.HProcess, address+uintptr(off), &buf[off], uintptr(n), &bytesRead)
		if err != nil {
			return nil, errors.Wrapf(err, "read %d bytes at 0x%X", n, address+uintptr(off))
		}
		if bytesRead != uintptr(n) {
			return nil, errors.Errorf("short read at 0x%X: %d of %d bytes", address+uintptr(off), bytesRead, n)
		}
	}
	return buf, nil
}
