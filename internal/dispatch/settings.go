package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// settings is the JSON settings file consumed by the wrapped CLI.
type settings struct {
	Telemetry telemetrySettings `json:"telemetry"`
}

type telemetrySettings struct {
	Enabled      bool   `json:"enabled"`
	Target       string `json:"target"`
	OTLPEndpoint string `json:"otlpEndpoint"`
	OutFile      string `json:"outfile,omitempty"`
	LogPrompts   bool   `json:"logPrompts"`
}

// WriteSettings writes the CLI settings file into the output directory and
// returns its path. Telemetry capture is enabled only when action logging
// is requested.
func WriteSettings(outputDir string, actionLog bool, telemetryPath string) (string, error) {
	s := settings{
		Telemetry: telemetrySettings{
			Enabled:    actionLog,
			Target:     "local",
			LogPrompts: false,
		},
	}
	if actionLog {
		s.Telemetry.OutFile = telemetryPath
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}

	path := filepath.Join(outputDir, settingsFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write settings: %w", err)
	}
	return path, nil
}
