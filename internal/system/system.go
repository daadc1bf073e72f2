package system

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// GetBestH264Encoder asks ffmpeg which H.264 encoders it was built with and
// returns the preferred one:
// 1. macOS (VideoToolbox)
// 2. NVIDIA (NVENC)
// 3. software (libx264)
func GetBestH264Encoder() string {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return "libx264"
}

// Resources is a snapshot of memory use for the performance report.
type Resources struct {
	ProcessRSS     uint64
	SystemUsed     uint64
	SystemTotal    uint64
	SystemUsedPerc float64
}

// ResourceReport samples process and system memory. Fields that cannot be
// read on this platform stay zero.
func ResourceReport() (Resources, error) {
	var r Resources

	vm, err := mem.VirtualMemory()
	if err != nil {
		return r, fmt.Errorf("virtual memory: %w", err)
	}
	r.SystemUsed = vm.Used
	r.SystemTotal = vm.Total
	r.SystemUsedPerc = vm.UsedPercent

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return r, fmt.Errorf("process: %w", err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return r, fmt.Errorf("process memory: %w", err)
	}
	r.ProcessRSS = info.RSS
	return r, nil
}

func (r Resources) String() string {
	return fmt.Sprintf("RSS %.1f MiB | System %.1f/%.1f GiB (%.0f%%)",
		float64(r.ProcessRSS)/(1<<20),
		float64(r.SystemUsed)/(1<<30), float64(r.SystemTotal)/(1<<30), r.SystemUsedPerc)
}
