package memory

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	ErrProcessNotFound = errors.New("process not found")
	ErrModuleNotFound  = errors.New("module not found")
)

// ModuleInfo locates a loaded module in the target's address space.
type ModuleInfo struct {
	Name string
	Base uintptr
	Size uint32
}

// Process is read-only access to a target's loaded modules.
type Process interface {
	// FindModule looks a module up by file name, case-insensitively.
	FindModule(name string) (ModuleInfo, error)
	// ReadBytes copies length bytes starting at address.
	ReadBytes(address uintptr, length uint32) ([]byte, error)
	Close() error
}

// FindPID returns the PID of the first running process whose executable
// name matches program.
func FindPID(program string) (uint32, error) {
	procs, err := process.Processes()
	if err != nil {
		return 0, errors.Wrap(err, "list processes")
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(name, program) {
			return uint32(p.Pid), nil
		}
	}
	return 0, errors.Wrapf(ErrProcessNotFound, "%s", program)
}
