// Package sysinfo reports the controller's own resource usage alongside the
// network state it manages.
package sysinfo

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

type Report struct {
	CPUPercent     float64
	MemUsedPercent float64
	Load1          float64
	Load5          float64
	Load15         float64
}

// Collect samples CPU, memory, and load. Partial failures leave the
// corresponding field at zero and are logged, not returned.
func Collect() Report {
	var r Report

	if percents, err := cpu.Percent(200*time.Millisecond, false); err != nil {
		log.Debugf("cpu sample failed: %v", err)
	} else if len(percents) > 0 {
		r.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		log.Debugf("memory sample failed: %v", err)
	} else {
		r.MemUsedPercent = vm.UsedPercent
	}

	if avg, err := load.Avg(); err != nil {
		log.Debugf("load sample failed: %v", err)
	} else {
		r.Load1, r.Load5, r.Load15 = avg.Load1, avg.Load5, avg.Load15
	}

	return r
}

// LogReport writes one controller health line.
func LogReport() {
	r := Collect()
	log.Infof("controller health: cpu=%.1f%% mem=%.1f%% load=%.2f/%.2f/%.2f",
		r.CPUPercent, r.MemUsedPercent, r.Load1, r.Load5, r.Load15)
}
