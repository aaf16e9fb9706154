//go:build darwin

// This file provides a stub implementation for MacOS to enable
// development and testing without eBPF support. The kernel-side
// cross-check is only available on Linux systems.

package platform

import "fmt"

type DarwinMonitor struct{}

func NewMonitor() (Monitor, error) {
	return &DarwinMonitor{}, nil
}

func (m *DarwinMonitor) Start() error {
	fmt.Println("Kernel removal counters not available on MacOS")
	return nil
}

func (m *DarwinMonitor) Stats() (KernelStats, error) {
	return KernelStats{}, nil
}

func (m *DarwinMonitor) Stop() error {
	return nil
}
