package cycle

import (
	"encoding/json"
	"os"
	"path/filepath"

	"inkframe/internal/render"
	"inkframe/internal/sensor"
	"inkframe/internal/weather"
)

// viewState is everything the next activation needs to redraw the frame
// without redoing work: display modes, the rotation position, the ghost
// counter and the last successful sensor and weather results. It lives
// in tmpfs next to the boot marker, so a power loss clears it and the
// cold-boot path rebuilds it from scratch.
type viewState struct {
	Modes      render.Modes    `json:"modes"`
	Background string          `json:"background,omitempty"`
	Rotation   int             `json:"rotation"`
	GhostCount int             `json:"ghost_count"`
	Sensor     *sensor.Reading `json:"sensor,omitempty"`
	Weather    *weather.Set    `json:"weather,omitempty"`
}

// loadView reads the view state, returning zero state when the file is
// missing or unreadable. Both defaults are off, which is the documented
// post-power-loss behavior for the mode toggles.
func loadView(path string) viewState {
	var v viewState
	data, err := os.ReadFile(path)
	if err != nil {
		return viewState{}
	}
	if json.Unmarshal(data, &v) != nil {
		return viewState{}
	}
	return v
}

// saveView persists the view state atomically.
func saveView(path string, v viewState) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
