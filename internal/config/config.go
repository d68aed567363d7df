package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPort        = 25826
	DefaultMaxDatagram = 1452
	DefaultWorkers     = 4
)

// DumpConfig configures collectdump.
type DumpConfig struct {
	// TypesDB lists definition files in load order. Later files replace
	// earlier definitions of the same type.
	TypesDB         []string
	BuiltinTypes    bool
	// Port filters pcap captures by UDP port; 0 accepts any port.
	Port            uint16
	MaxDatagram     int
	Workers         int
	Format          string
	MetricsTextfile string
	LogLevel        string
}

type fileConfig struct {
	TypesDB         []string `toml:"types_db"`
	BuiltinTypes    bool     `toml:"builtin_types"`
	Port            int      `toml:"port"`
	MaxDatagram     int      `toml:"max_datagram"`
	Workers         int      `toml:"workers"`
	Format          string   `toml:"format"`
	MetricsTextfile string   `toml:"metrics_textfile"`
	LogLevel        string   `toml:"log_level"`
}

func Default() DumpConfig {
	return DumpConfig{
		TypesDB:      []string{},
		BuiltinTypes: true,
		Port:         DefaultPort,
		MaxDatagram:  DefaultMaxDatagram,
		Workers:      DefaultWorkers,
		Format:       "json",
	}
}

// LoadDumpConfig overlays the keys defined in the TOML file at path onto
// Default.
func LoadDumpConfig(path string) (DumpConfig, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return DumpConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return DumpConfig{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("types_db") {
		cfg.TypesDB = normalizePaths(raw.TypesDB)
	}
	if meta.IsDefined("builtin_types") {
		cfg.BuiltinTypes = raw.BuiltinTypes
	}
	if meta.IsDefined("port") {
		if raw.Port < 0 || raw.Port > 65535 {
			return DumpConfig{}, fmt.Errorf("config port out of range: %d", raw.Port)
		}
		cfg.Port = uint16(raw.Port)
	}
	if meta.IsDefined("max_datagram") {
		cfg.MaxDatagram = raw.MaxDatagram
	}
	if meta.IsDefined("workers") {
		cfg.Workers = raw.Workers
	}
	if meta.IsDefined("format") {
		cfg.Format = strings.ToLower(strings.TrimSpace(raw.Format))
	}
	if meta.IsDefined("metrics_textfile") {
		cfg.MetricsTextfile = strings.TrimSpace(raw.MetricsTextfile)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := ValidateDumpConfig(cfg); err != nil {
		return DumpConfig{}, err
	}
	return cfg, nil
}

func ValidateDumpConfig(cfg DumpConfig) error {
	if cfg.MaxDatagram <= 0 || cfg.MaxDatagram > 65535 {
		return fmt.Errorf("dump config max_datagram out of range: %d", cfg.MaxDatagram)
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("dump config workers must be positive: %d", cfg.Workers)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("dump config unknown format: %q", cfg.Format)
	}
	if !cfg.BuiltinTypes && len(cfg.TypesDB) == 0 {
		return fmt.Errorf("dump config has no type definitions: enable builtin_types or list types_db files")
	}
	for i, path := range cfg.TypesDB {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("types_db[%d] is empty", i)
		}
	}
	return nil
}

func normalizePaths(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
