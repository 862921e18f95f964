// Package toolconfig loads cmd/circlogtool's region configuration: which
// device image to mount, where the log region sits on it, and the sizing
// knobs that map onto circlog.Config. The format is JSON-with-comments,
// parsed the same way the teacher parses its server config, substituting
// hujson for the teacher's plain encoding/json to tolerate comments and
// trailing commas in a hand-edited demo config file.
package toolconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tailscale/hujson"
)

// Config controls one mounted region for cmd/circlogtool.
type Config struct {
	// ImagePath is the backing file for the flashio.SimFile device image.
	ImagePath string `json:"image_path"`
	// ImageCapacity is the total simulated device size in bytes: the size of
	// a new image when ImagePath does not exist yet, and the size an
	// existing image must have.
	ImageCapacity uint32 `json:"image_capacity"`

	// Name is an opaque label, passed through to circlog.Config.Name.
	Name string `json:"name"`
	// BaseAddress and LogsLength describe the log's region on the device.
	BaseAddress uint32 `json:"base_address"`
	LogsLength  uint32 `json:"logs_length"`

	SectorSize  uint32 `json:"sector_size"`
	ProgramUnit uint32 `json:"program_unit"`
	MaxDateLen  uint32 `json:"max_date_len"`

	// IndexEnabled turns on the per-sector timestamp index.
	IndexEnabled bool `json:"index_enabled"`

	// TimeLayout is the Go reference-time layout ReadLines/Read lines are
	// expected to be prefixed with, when IndexEnabled is true.
	TimeLayout string `json:"time_layout"`
}

func Default() Config {
	return Config{
		ImagePath:     "./circlog-demo.img",
		ImageCapacity: 1 << 20,
		Name:          "demo",
		BaseAddress:   0,
		LogsLength:    1 << 20,
		SectorSize:    0x1000,
		ProgramUnit:   0x100,
		MaxDateLen:    32,
		IndexEnabled:  true,
		TimeLayout:    "2006-01-02T15:04:05",
	}
}

// Load reads a JSONC config file, falling back to Default() if path is
// empty. A config read from a file is run through Validate before it is
// returned; the empty-path Default() is returned as is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return cfg, fmt.Errorf("toolconfig: parsing %s: %w", path, err)
	}
	if err := json.Unmarshal(std, &cfg); err != nil {
		return cfg, fmt.Errorf("toolconfig: decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ImagePath == "" {
		return fmt.Errorf("image_path is required")
	}
	if c.ImageCapacity == 0 {
		c.ImageCapacity = 1 << 20
	}
	if c.LogsLength == 0 {
		c.LogsLength = c.ImageCapacity
	}
	if c.BaseAddress+c.LogsLength > c.ImageCapacity {
		return fmt.Errorf("base_address+logs_length (%d) exceeds image_capacity (%d)", c.BaseAddress+c.LogsLength, c.ImageCapacity)
	}
	if c.SectorSize == 0 {
		c.SectorSize = 0x1000
	}
	if c.ProgramUnit == 0 {
		c.ProgramUnit = 0x100
	}
	if c.MaxDateLen == 0 {
		c.MaxDateLen = 32
	}
	if c.LogsLength%c.SectorSize != 0 {
		return fmt.Errorf("logs_length (%d) must be a multiple of sector_size (%d)", c.LogsLength, c.SectorSize)
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "demo"
	}
	if c.IndexEnabled && c.TimeLayout == "" {
		c.TimeLayout = "2006-01-02T15:04:05"
	}
	return nil
}
