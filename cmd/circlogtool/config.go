package main

import (
	"time"

	"circlog/internal/circlog"
	"circlog/internal/flashio"
	"circlog/internal/toolconfig"
)

// mount opens (or creates) the simulated device image named by cfg and
// mounts a circlog.Log over it. The returned *flashio.SimFile must be
// closed by the caller to persist any writes made during this run.
func mount(cfg toolconfig.Config) (*circlog.Log, *flashio.SimFile, error) {
	dev, err := flashio.OpenSimFile(cfg.ImagePath, cfg.ImageCapacity)
	if err != nil {
		return nil, nil, err
	}

	lcfg := circlog.Config{
		Name:        cfg.Name,
		BaseAddress: cfg.BaseAddress,
		LogsLength:  cfg.LogsLength,
		SectorSize:  cfg.SectorSize,
		ProgramUnit: cfg.ProgramUnit,
		MaxDateLen:  cfg.MaxDateLen,
		Device:      dev,
	}
	if cfg.IndexEnabled {
		lcfg.Index = make([]circlog.IndexEntry, cfg.LogsLength/cfg.SectorSize)
		lcfg.ParseTime = parseTimeFunc(cfg.TimeLayout)
	}

	l, err := circlog.New(lcfg)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	if st := l.Init(); st != circlog.StatusNone {
		dev.Close()
		return nil, nil, st
	}
	return l, dev, nil
}

// parseTimeFunc builds a circlog.Config.ParseTime that reads a
// layout-formatted timestamp from the start of a log line.
func parseTimeFunc(layout string) func([]byte) uint32 {
	return func(line []byte) uint32 {
		end := len(line)
		if end > len(layout) {
			end = len(layout)
		}
		t, err := time.Parse(layout, string(line[:end]))
		if err != nil {
			return 0
		}
		return uint32(t.Unix())
	}
}
