package pause

import (
	"github.com/sentinel-wallpaper/engine/internal/ipc"
	"github.com/sentinel-wallpaper/engine/internal/platform"
)

// IdleSource reports how long the desktop session has been idle;
// platform.Platform satisfies this.
type IdleSource interface {
	IdleSeconds() (float64, error)
}

// IPCStateSource adapts an IPC client's registry.list_appdata call and
// the platform's idle-time query into the StateSource this package's
// Controller polls each tick.
type IPCStateSource struct {
	Client *ipc.Client
	Idle   IdleSource
}

func (s IPCStateSource) FocusStates() (map[string]platform.FocusState, error) {
	rows, err := s.Client.ListAppdata()
	if err != nil {
		return nil, err
	}

	out := make(map[string]platform.FocusState, len(rows))
	for monitorID, row := range rows {
		var fs platform.FocusState
		for _, w := range row.Windows {
			if !w.Focused {
				continue
			}
			fs.Focused = true
			switch w.WindowState {
			case "maximized":
				fs.Maximized = true
			case "fullscreen":
				fs.Fullscreen = true
			}
			break
		}
		out[monitorID] = fs
	}
	return out, nil
}

func (s IPCStateSource) IdleSeconds() (float64, error) {
	return s.Idle.IdleSeconds()
}
