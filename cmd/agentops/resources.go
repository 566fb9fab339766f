package main

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Resource warning thresholds. Exceeding them raises a warning alert but
// never affects the failure counter or triggers restarts.
const (
	// MemoryWarnPercent is the memory utilization warning threshold.
	MemoryWarnPercent = 85.0

	// DiskWarnPercent is the disk utilization warning threshold.
	DiskWarnPercent = 90.0
)

// ResourceSample is one point-in-time reading of host utilization.
type ResourceSample struct {
	// MemoryPercent is used physical memory as a percentage.
	MemoryPercent float64

	// DiskPercent is used space on the sampled mount as a percentage.
	DiskPercent float64

	// MemoryUsed and MemoryTotal are in bytes.
	MemoryUsed  uint64
	MemoryTotal uint64

	// DiskUsed and DiskTotal are in bytes.
	DiskUsed  uint64
	DiskTotal uint64
}

// Warnings returns threshold-violation messages, empty when healthy.
func (s ResourceSample) Warnings() []string {
	var warnings []string
	if s.MemoryPercent > MemoryWarnPercent {
		warnings = append(warnings, fmt.Sprintf("memory usage %.1f%% exceeds %.0f%%", s.MemoryPercent, MemoryWarnPercent))
	}
	if s.DiskPercent > DiskWarnPercent {
		warnings = append(warnings, fmt.Sprintf("disk usage %.1f%% exceeds %.0f%%", s.DiskPercent, DiskWarnPercent))
	}
	return warnings
}

// ResourceSampler reads host resource utilization.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ResourceSampler interface {
	// Sample reads current memory and disk utilization.
	Sample(ctx context.Context) (ResourceSample, error)
}

// GopsutilSampler implements ResourceSampler with gopsutil.
type GopsutilSampler struct {
	// diskPath is the mount point sampled for disk usage.
	diskPath string
}

// NewGopsutilSampler samples memory and the filesystem holding diskPath.
func NewGopsutilSampler(diskPath string) *GopsutilSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &GopsutilSampler{diskPath: diskPath}
}

// Sample reads current utilization.
func (s *GopsutilSampler) Sample(ctx context.Context) (ResourceSample, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to sample memory: %w", err)
	}

	du, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return ResourceSample{}, fmt.Errorf("failed to sample disk %s: %w", s.diskPath, err)
	}

	return ResourceSample{
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
		MemoryUsed:    vm.Used,
		MemoryTotal:   vm.Total,
		DiskUsed:      du.Used,
		DiskTotal:     du.Total,
	}, nil
}

// MockResourceSampler is a configurable test double.
type MockResourceSampler struct {
	// SampleFunc is called when Sample is invoked.
	SampleFunc func(ctx context.Context) (ResourceSample, error)
}

// Sample delegates to SampleFunc.
func (m *MockResourceSampler) Sample(ctx context.Context) (ResourceSample, error) {
	if m.SampleFunc == nil {
		panic("MockResourceSampler.SampleFunc not set")
	}
	return m.SampleFunc(ctx)
}

// Compile-time interface compliance check.
var (
	_ ResourceSampler = (*GopsutilSampler)(nil)
	_ ResourceSampler = (*MockResourceSampler)(nil)
)
