// Package messages defines the JSON-with-type-field wire shapes pushed
// into and received from each Surface's embedded web view.
package messages

// Outbound type discriminators (host → embedded content).
const (
	TypeMove          = "native_move"
	TypeClick         = "native_click"
	TypeKey           = "native_key"
	TypeAudio         = "native_audio"
	TypeRegistry      = "native_registry"
	TypePause         = "native_pause"
	TypeCSSVars       = "native_css_vars"
	TypeMonitorBounds = "native_monitor_bounds"
)

// Inbound type discriminators (embedded content → host).
const (
	TypeDemands        = "sentinel_demands"
	TypeSaveEditable    = "wallpaper_save_editable"
	TypeAssignProfile   = "wallpaper_assign_profile"
	TypeConfigUpdate    = "wallpaper_config_update"
)

// Envelope is the minimal shape every inbound message shares; the
// Type field selects which concrete payload to decode Raw into.
type Envelope struct {
	Type string `json:"type"`
}

// Move reports cursor position in the Surface's local and normalized
// (0-1) coordinate space.
type Move struct {
	Type string  `json:"type"`
	X    int     `json:"x"`
	Y    int     `json:"y"`
	NX   float64 `json:"nx"`
	NY   float64 `json:"ny"`
}

func NewMove(x, y int, nx, ny float64) Move {
	return Move{Type: TypeMove, X: x, Y: y, NX: nx, NY: ny}
}

// Click reports a left-button-down edge.
type Click struct {
	Type string  `json:"type"`
	X    int     `json:"x"`
	Y    int     `json:"y"`
	NX   float64 `json:"nx"`
	NY   float64 `json:"ny"`
}

func NewClick(x, y int, nx, ny float64) Click {
	return Click{Type: TypeClick, X: x, Y: y, NX: nx, NY: ny}
}

// KeyState is "down" or "up".
type KeyState string

const (
	KeyDown KeyState = "down"
	KeyUp   KeyState = "up"
)

// Key reports an edge-triggered key transition.
type Key struct {
	Type  string   `json:"type"`
	Key   string   `json:"key"`
	VK    int      `json:"vk"`
	State KeyState `json:"state"`
}

func NewKey(key string, vk int, state KeyState) Key {
	return Key{Type: TypeKey, Key: key, VK: vk, State: state}
}

// Audio reports the normalized (0-1) system audio peak level.
type Audio struct {
	Type  string  `json:"type"`
	Level float64 `json:"level"`
}

func NewAudio(level float64) Audio {
	return Audio{Type: TypeAudio, Level: level}
}

// Registry delivers a monitor's latest sysdata/appdata snapshot,
// flattened to dot-notation paths.
type Registry struct {
	Type    string                 `json:"type"`
	SysData map[string]any         `json:"sysdata"`
	AppData map[string]any         `json:"appdata"`
}

func NewRegistry(sysdata, appdata map[string]any) Registry {
	return Registry{Type: TypeRegistry, SysData: sysdata, AppData: appdata}
}

// Pause notifies embedded content of a pause-state edge.
type Pause struct {
	Type   string `json:"type"`
	Paused bool   `json:"paused"`
}

func NewPause(paused bool) Pause {
	return Pause{Type: TypePause, Paused: paused}
}

// CSSVars delivers an editable-variable diff: CSS custom property
// name (including the leading "--") to its new value.
type CSSVars struct {
	Type string         `json:"type"`
	Vars map[string]any `json:"vars"`
}

func NewCSSVars(vars map[string]any) CSSVars {
	return CSSVars{Type: TypeCSSVars, Vars: vars}
}

// MonitorBounds reports the Surface's owning monitor rect in
// virtual-desktop pixels.
type MonitorBounds struct {
	Type   string `json:"type"`
	Left   int    `json:"left"`
	Top    int    `json:"top"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func NewMonitorBounds(left, top, width, height int) MonitorBounds {
	return MonitorBounds{Type: TypeMonitorBounds, Left: left, Top: top, Width: width, Height: height}
}

// Demands is posted by embedded content to narrow which native_registry
// sections it wants pushed.
type Demands struct {
	Type     string   `json:"type"`
	Sections []string `json:"sections"`
}

// SaveEditable is posted by the options UI to persist one editable value.
type SaveEditable struct {
	Type  string `json:"type"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// AssignProfile is relayed from the options UI to bind an asset to a
// monitor selector under a given config key.
type AssignProfile struct {
	Type         string `json:"type"`
	AddonID      string `json:"addonId"`
	ProfileKey   string `json:"profileKey"`
	MonitorIndex string `json:"monitorIndex"`
	WallpaperID  string `json:"wallpaperId"`
}

// ConfigUpdate is relayed from the options UI for a single config path/value.
type ConfigUpdate struct {
	Type  string `json:"type"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}
