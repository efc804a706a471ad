package datapump

import (
	"encoding/json"

	"github.com/sentinel-wallpaper/engine/internal/ipc"
)

// IPCBackend adapts *ipc.Client to the Backend interface, converting
// its wire-level row types into this package's plain equivalents.
type IPCBackend struct {
	Client *ipc.Client
}

func (b IPCBackend) ListSysdata() (map[string]json.RawMessage, error) {
	return b.Client.ListSysdata()
}

func (b IPCBackend) ListAppdata() (map[string]AppdataRow, error) {
	raw, err := b.Client.ListAppdata()
	if err != nil {
		return nil, err
	}
	out := make(map[string]AppdataRow, len(raw))
	for id, row := range raw {
		out[id] = convertRow(row)
	}
	return out, nil
}

func convertRow(row ipc.AppdataRow) AppdataRow {
	windows := make([]WindowInfo, len(row.Windows))
	for i, w := range row.Windows {
		windows[i] = WindowInfo{
			Focused:     w.Focused,
			AppName:     w.AppName,
			ExePath:     w.ExePath,
			WindowTitle: w.WindowTitle,
			PID:         w.PID,
			WindowState: w.WindowState,
			Size:        w.Size,
			Position:    w.Position,
		}
	}
	return AppdataRow{Windows: windows}
}
