// Package infra implements infrastructure concerns (local store, process, clock, device notifiers).
package infra

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/farmstock/stockmon/internal/domain"
)

// ProcessInfo is a snapshot of a running process for the status command.
type ProcessInfo struct {
	PID       int
	Name      string
	StartedAt time.Time
	RSSBytes  uint64
}

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() *ProcessManagerImpl {
	return &ProcessManagerImpl{}
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// Describe returns name, start time and resident memory of pid.
// Fields gopsutil cannot read on this platform are left zero.
func (pm *ProcessManagerImpl) Describe(pid int) (*ProcessInfo, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}

	info := &ProcessInfo{PID: pid}
	if name, err := p.Name(); err == nil {
		info.Name = name
	}
	if ms, err := p.CreateTime(); err == nil {
		info.StartedAt = time.UnixMilli(ms)
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	return info, nil
}

var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
