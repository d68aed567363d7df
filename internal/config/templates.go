package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "dump", "collectdump":
		return dumpTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const dumpTemplate = `# collectdump configuration

# Load the embedded collectd types.db before the files below.
builtin_types = true

# Definition files in load order; later files replace earlier definitions.
types_db = [
  # "/usr/share/collectd/types.db",
  # "/etc/collectd/custom_types.db",
]

# UDP destination port of collectd traffic inside pcap captures; 0 accepts any.
port = 25826

# Datagrams larger than this are rejected before decoding.
max_datagram = 1452

# Input files decoded concurrently.
workers = 4

# Output format: "json" or "text".
format = "json"

# Optional Prometheus text-file written after a run.
metrics_textfile = ""

log_level = "info"
`
