// Package platform provides the kernel-side cross-check: system-wide
// counters of removal syscalls, observed at the tracepoint level. The
// shim only sees calls routed through its API, so comparing its event
// volume against these counters shows how much removal activity the
// interposition layer is actually covering.
package platform

// KernelStats is a snapshot of removal syscalls observed kernel-wide
// since the monitor started.
type KernelStats struct {
	Unlink   uint64 `json:"unlink"`
	Unlinkat uint64 `json:"unlinkat"`
	Rmdir    uint64 `json:"rmdir"`
}

// Monitor interface defines what we need from the kernel-side
// implementation. On Linux this is eBPF; elsewhere it is a stub so the
// collector still runs.
type Monitor interface {
	Start() error
	Stats() (KernelStats, error)
	Stop() error
}
