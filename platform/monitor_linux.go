//go:build linux

package platform

import (
	"fmt"
	"log"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
)

// Counter slots in the BPF array map
const (
	slotUnlink = iota
	slotUnlinkat
	slotRmdir
	slotCount
)

type LinuxMonitor struct {
	counters *ebpf.Map
	programs []*ebpf.Program
	links    []link.Link
}

func NewMonitor() (Monitor, error) {
	return &LinuxMonitor{}, nil
}

// Start loads the counter map and one tracepoint program per removal
// syscall. The programs are small enough to assemble directly, so no
// compiled BPF objects are needed. A tracepoint that fails to attach
// is logged and skipped; partial coverage is still useful.
func (m *LinuxMonitor) Start() error {
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("failed to remove memlock: %v", err)
	}

	counters, err := ebpf.NewMap(&ebpf.MapSpec{
		Name:       "removal_counters",
		Type:       ebpf.Array,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: slotCount,
	})
	if err != nil {
		return fmt.Errorf("failed to create counter map: %v", err)
	}
	m.counters = counters

	tracepoints := []struct {
		slot int32
		name string
	}{
		{slotUnlink, "sys_enter_unlink"},
		{slotUnlinkat, "sys_enter_unlinkat"},
		{slotRmdir, "sys_enter_rmdir"},
	}

	for _, tp := range tracepoints {
		prog, err := ebpf.NewProgram(&ebpf.ProgramSpec{
			Name:         "count_" + tp.name,
			Type:         ebpf.TracePoint,
			License:      "GPL",
			Instructions: counterProgram(counters, tp.slot),
		})
		if err != nil {
			m.Stop()
			return fmt.Errorf("failed to load counter program for %s: %v", tp.name, err)
		}
		m.programs = append(m.programs, prog)

		tpLink, err := link.Tracepoint("syscalls", tp.name, prog, nil)
		if err != nil {
			log.Printf("Warning: Failed to attach %s tracepoint: %v", tp.name, err)
			continue
		}
		m.links = append(m.links, tpLink)
	}

	log.Println("Kernel removal counters attached")
	return nil
}

// counterProgram atomically increments one slot of the counter map.
func counterProgram(counters *ebpf.Map, slot int32) asm.Instructions {
	return asm.Instructions{
		// key = slot, held on the stack for the lookup
		asm.Mov.Imm(asm.R1, slot),
		asm.StoreMem(asm.RFP, -4, asm.R1, asm.Word),
		asm.LoadMapPtr(asm.R1, counters.FD()),
		asm.Mov.Reg(asm.R2, asm.RFP),
		asm.Add.Imm(asm.R2, -4),
		asm.FnMapLookupElem.Call(),
		asm.JEq.Imm(asm.R0, 0, "done"),
		asm.Mov.Imm(asm.R1, 1),
		asm.StoreXAdd(asm.R0, asm.R1, asm.DWord),
		asm.Mov.Imm(asm.R0, 0).WithSymbol("done"),
		asm.Return(),
	}
}

// Stats reads the current counter values.
func (m *LinuxMonitor) Stats() (KernelStats, error) {
	var stats KernelStats
	if m.counters == nil {
		return stats, fmt.Errorf("monitor not started")
	}

	values := []*uint64{&stats.Unlink, &stats.Unlinkat, &stats.Rmdir}
	for slot, value := range values {
		key := uint32(slot)
		if err := m.counters.Lookup(&key, value); err != nil {
			return stats, fmt.Errorf("failed to read counter %d: %v", slot, err)
		}
	}
	return stats, nil
}

// Stop detaches the tracepoints and releases the BPF objects.
func (m *LinuxMonitor) Stop() error {
	for _, l := range m.links {
		l.Close()
	}
	m.links = nil
	for _, p := range m.programs {
		p.Close()
	}
	m.programs = nil
	if m.counters != nil {
		m.counters.Close()
		m.counters = nil
	}
	return nil
}
