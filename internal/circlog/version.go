package circlog

import (
	"fmt"
	"runtime"
)

// Build-time variables (override via -ldflags -X ...).
// Example:
//
//	go build -ldflags "-X circlog/internal/circlog.Version=0.1.4.2 -X circlog/internal/circlog.Commit=abcd123 -X circlog/internal/circlog.BuildDate=2026-01-10"
var (
	Version   = "v0.1.0"
	Commit    = ""
	BuildDate = ""
)

// VersionInfo reports the engine's build identity (cmd/circlogtool's
// "version" subcommand and the on-disk format this binary writes).
type VersionInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit,omitempty"`
	BuildDate   string `json:"build_date,omitempty"`
	GoVersion   string `json:"go_version"`
	WireVersion int    `json:"wire_version"`
}

// WireFormatVersion identifies the on-media layout this package mounts.
// spec.md defines exactly one layout; bump this if that ever changes.
const WireFormatVersion = 1

func GetVersion() VersionInfo {
	return VersionInfo{
		Version:     Version,
		Commit:      Commit,
		BuildDate:   BuildDate,
		GoVersion:   runtime.Version(),
		WireVersion: WireFormatVersion,
	}
}

func (i VersionInfo) String() string {
	s := i.Version
	if s == "" {
		s = "dev"
	}
	if i.Commit != "" {
		s += fmt.Sprintf(" (%s)", i.Commit)
	}
	if i.BuildDate != "" {
		s += fmt.Sprintf(" built %s", i.BuildDate)
	}
	s += fmt.Sprintf(" [%s, wire v%d]", i.GoVersion, i.WireVersion)
	return s
}
