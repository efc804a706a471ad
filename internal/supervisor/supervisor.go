package supervisor

import (
	"context"
	"encoding/json"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/asset"
	"github.com/sentinel-wallpaper/engine/internal/audit"
	"github.com/sentinel-wallpaper/engine/internal/config"
	"github.com/sentinel-wallpaper/engine/internal/datapump"
	"github.com/sentinel-wallpaper/engine/internal/editable"
	"github.com/sentinel-wallpaper/engine/internal/hostlocator"
	"github.com/sentinel-wallpaper/engine/internal/messages"
	"github.com/sentinel-wallpaper/engine/internal/pause"
	"github.com/sentinel-wallpaper/engine/internal/platform"
	"github.com/sentinel-wallpaper/engine/internal/samplers"
	"github.com/sentinel-wallpaper/engine/internal/surface"
	"github.com/sentinel-wallpaper/engine/internal/topology"
	"github.com/sentinel-wallpaper/engine/internal/workerpool"
)

const eventQueueSize = 256

// event is the single-threaded reconciliation loop's unit of work.
// Every external input is normalized into one of these before it can
// touch Supervisor state.
type event struct {
	kind          eventKind
	topology      platform.TopologySnapshot
	pauseRising   []string
	pauseFalling  []string
	globalPaused  *bool
	dataUpdate    datapump.Update
	cssAssetID    string
	cssVars       map[string]any
	cursorEvent   samplers.CursorEvent
	keyEvent      samplers.KeyEvent
	audioLevel    float64
	uiAssign      messages.AssignProfile
	uiSaveEdit    messages.SaveEditable
	uiConfigPath  string
	uiConfigValue any
}

type eventKind int

const (
	eventTopology eventKind = iota
	eventPauseEdges
	eventDataUpdate
	eventCSSVars
	eventCursor
	eventKey
	eventAudio
	eventUIAssign
	eventUISaveEditable
	eventUIConfigUpdate
	eventReconcileNow
)

// Supervisor owns every Surface and is the sole writer of Surface
// lifecycle state. It runs on one goroutine; every other component
// talks to it only by enqueuing events.
type Supervisor struct {
	plat     platform.Platform
	host     *hostlocator.Host
	registry *asset.Registry
	store    *editable.Store
	pool     *workerpool.Pool
	audit    *audit.Logger

	mu       sync.Mutex
	cfg      *config.Config
	topology platform.TopologySnapshot

	surfaces map[surface.Key]*surface.Surface
	snapshot *pause.SnapshotManager

	events chan event
}

// New builds a Supervisor. cfg must already be loaded; registry and
// store must already be constructed against the same assets directory.
// auditLog may be nil — every audit call is a safe no-op on a nil Logger.
func New(plat platform.Platform, host *hostlocator.Host, registry *asset.Registry, store *editable.Store, cfg *config.Config, snapshot *pause.SnapshotManager, auditLog *audit.Logger) *Supervisor {
	return &Supervisor{
		plat:     plat,
		host:     host,
		registry: registry,
		store:    store,
		cfg:      cfg,
		snapshot: snapshot,
		audit:    auditLog,
		surfaces: make(map[surface.Key]*surface.Surface),
		pool:     workerpool.New(4, 64),
		events:   make(chan event, eventQueueSize),
	}
}

// Run drains the event queue, handling one event per iteration, and
// otherwise idles for tickSleep between checks — the single-threaded
// reconciliation loop the rest of the engine's components feed.
func (sv *Supervisor) Run(ctx context.Context) {
	tickSleep := time.Duration(sv.cfg.Settings.Runtime.TickSleepMs) * time.Millisecond
	if tickSleep <= 0 {
		tickSleep = 8 * time.Millisecond
	}

	sv.reconcile()

	for {
		select {
		case <-ctx.Done():
			sv.shutdown()
			return
		case ev := <-sv.events:
			sv.handle(ev)
		case <-time.After(tickSleep):
		}
	}
}

// RunTopologyWatcher bridges a topology.Watcher's channel into the
// event queue; the Supervisor itself never blocks on a topology read.
func (sv *Supervisor) RunTopologyWatcher(ctx context.Context, w *topology.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-w.Updates():
			if !ok {
				return
			}
			sv.enqueue(event{kind: eventTopology, topology: snap})
		}
	}
}

// RunDataPump bridges a datapump.Pump's channel into the event queue.
func (sv *Supervisor) RunDataPump(ctx context.Context, p *datapump.Pump) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-p.Updates():
			if !ok {
				return
			}
			sv.enqueue(event{kind: eventDataUpdate, dataUpdate: upd})
		}
	}
}

// RunSamplers bridges the cursor/key/audio sampler channels into the
// event queue.
func (sv *Supervisor) RunSamplers(ctx context.Context, s *samplers.Sampler) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.Cursor.Events():
			if ok {
				sv.enqueue(event{kind: eventCursor, cursorEvent: ev})
			}
		case ev, ok := <-s.Key.Events():
			if ok {
				sv.enqueue(event{kind: eventKey, keyEvent: ev})
			}
		case lvl, ok := <-s.Audio.Events():
			if ok {
				sv.enqueue(event{kind: eventAudio, audioLevel: lvl})
			}
		}
	}
}

// SetSnapshot rebinds the Supervisor's snapshot manager. Used when the
// manager (which needs the Supervisor as its pause.FrameSource) can
// only be constructed after the Supervisor itself.
func (sv *Supervisor) SetSnapshot(snapshot *pause.SnapshotManager) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.snapshot = snapshot
}

// Topology returns the current topology snapshot. Used by components
// outside the reconciliation loop (periodic pause-time recapture) that
// need it without enqueuing an event.
func (sv *Supervisor) Topology() platform.TopologySnapshot {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.topology
}

// CaptureFrame implements pause.FrameSource, returning the current
// frame of whichever Surface currently occupies monitorID.
func (sv *Supervisor) CaptureFrame(monitorID string) (*image.RGBA, platform.Rect, bool) {
	for key, s := range sv.surfaces {
		if key.MonitorID != monitorID {
			continue
		}
		img, err := s.CaptureFrame()
		if err != nil {
			continue
		}
		return img, s.Rect(), true
	}
	return nil, platform.Rect{}, false
}

// logAudit submits an audit write to the worker pool so a slow or
// fsync'd entry never adds latency to the reconciliation loop. Falls
// back to a synchronous call if the pool has stopped accepting or its
// queue is full, so an audit event is never silently dropped.
func (sv *Supervisor) logAudit(eventType, surfaceID string, details map[string]any) {
	submitted := sv.pool != nil && sv.pool.Submit(func() {
		sv.audit.Log(eventType, surfaceID, details)
	})
	if !submitted {
		sv.audit.Log(eventType, surfaceID, details)
	}
}

func (sv *Supervisor) enqueue(ev event) {
	select {
	case sv.events <- ev:
	default:
		log.Warn("event queue full, dropping event", "kind", ev.kind)
	}
}

// --- editable.Sink ---

func (sv *Supervisor) PushCSSVars(assetID string, vars map[string]any) {
	sv.enqueue(event{kind: eventCSSVars, cssAssetID: assetID, cssVars: vars})
}

// --- pause.Sink ---

func (sv *Supervisor) OnPauseRisingEdge(monitorIDs []string) {
	sv.enqueue(event{kind: eventPauseEdges, pauseRising: monitorIDs})
}

func (sv *Supervisor) OnPauseFallingEdge(monitorIDs []string) {
	sv.enqueue(event{kind: eventPauseEdges, pauseFalling: monitorIDs})
}

func (sv *Supervisor) OnGlobalPauseChange(paused bool) {
	p := paused
	sv.enqueue(event{kind: eventPauseEdges, globalPaused: &p})
}

// --- UI-originated messages, relayed from the options server ---

func (sv *Supervisor) AssignProfile(msg messages.AssignProfile) {
	sv.enqueue(event{kind: eventUIAssign, uiAssign: msg})
}

func (sv *Supervisor) SaveEditable(assetID string, msg messages.SaveEditable) {
	msg.Key = assetID + "/" + msg.Key
	sv.enqueue(event{kind: eventUISaveEditable, uiSaveEdit: msg})
}

func (sv *Supervisor) UpdateConfig(path string, value any) {
	sv.enqueue(event{kind: eventUIConfigUpdate, uiConfigPath: path, uiConfigValue: value})
}

// ReloadConfig swaps in a freshly re-read config.Config (e.g. following
// the options UI editing config.yaml directly on disk) and forces a
// reconciliation pass against it.
func (sv *Supervisor) ReloadConfig(cfg *config.Config) {
	sv.mu.Lock()
	sv.cfg = cfg
	sv.mu.Unlock()
	sv.logAudit(audit.EventConfigChange, "", nil)
	sv.enqueue(event{kind: eventReconcileNow})
}

func (sv *Supervisor) handle(ev event) {
	switch ev.kind {
	case eventTopology:
		sv.mu.Lock()
		sv.topology = ev.topology
		sv.mu.Unlock()
		sv.reconcile()
	case eventPauseEdges:
		sv.applyPauseEdges(ev)
	case eventDataUpdate:
		sv.applyDataUpdate(ev.dataUpdate)
	case eventCSSVars:
		sv.applyCSSVars(ev.cssAssetID, ev.cssVars)
	case eventCursor:
		sv.applyCursorEvent(ev.cursorEvent)
	case eventKey:
		sv.applyKeyEvent(ev.keyEvent)
	case eventAudio:
		sv.applyAudioEvent(ev.audioLevel)
	case eventUIAssign:
		sv.applyAssignProfile(ev.uiAssign)
	case eventUISaveEditable:
		if err := sv.store.Save(assetIDOf(ev.uiSaveEdit.Key), keyOf(ev.uiSaveEdit.Key), ev.uiSaveEdit.Value); err != nil {
			log.Warn("failed to save editable from options UI", "key", ev.uiSaveEdit.Key, "error", err)
		} else {
			sv.logAudit(audit.EventEditableSaved, assetIDOf(ev.uiSaveEdit.Key), map[string]any{"key": keyOf(ev.uiSaveEdit.Key)})
		}
	case eventUIConfigUpdate:
		log.Info("config update relayed from options UI", "path", ev.uiConfigPath)
	case eventReconcileNow:
		sv.reconcile()
	}
}

func assetIDOf(compositeKey string) string {
	for i := 0; i < len(compositeKey); i++ {
		if compositeKey[i] == '/' {
			return compositeKey[:i]
		}
	}
	return compositeKey
}

func keyOf(compositeKey string) string {
	for i := 0; i < len(compositeKey); i++ {
		if compositeKey[i] == '/' {
			return compositeKey[i+1:]
		}
	}
	return compositeKey
}

// reconcile computes the target Surface set from the current config
// and topology, diffs it against the live Surface set, and applies
// create/destroy/update. A failure partway through a reconciliation
// event is rolled back: any Surface created during this pass is
// destroyed again, leaving the previous Surface set intact.
func (sv *Supervisor) reconcile() {
	sv.mu.Lock()
	cfg := sv.cfg
	topo := sv.topology
	sv.mu.Unlock()

	if len(topo.Monitors) == 0 {
		return
	}

	target := computeTargetSet(cfg, topo, sv.registry)
	toCreate, toDestroy, toUpdate := diff(target, sv.surfaces)

	parent, err := sv.host.Get()
	if err != nil {
		log.Error("cannot reconcile: wallpaper host window unavailable", "error", err)
		return
	}

	var created []surface.Key
	rollback := func() {
		for _, key := range created {
			sv.surfaces[key].Destroy()
			delete(sv.surfaces, key)
		}
	}

	for _, key := range toCreate {
		s, err := surface.Create(sv.plat, parent, target[key].Spec)
		if err != nil {
			log.Error("failed to create surface, rolling back this reconciliation pass", "key", key, "error", err)
			rollback()
			return
		}
		sv.surfaces[key] = s
		created = append(created, key)
		sv.logAudit(audit.EventWallpaperApplied, key.MonitorID, map[string]any{"profile": key.ProfileID})
	}

	for _, key := range toUpdate {
		s := sv.surfaces[key]
		t := target[key]
		if err := s.ReparentTo(parent, t.Spec.ZLayer); err != nil {
			log.Warn("failed to update surface z-layer", "key", key, "error", err)
		}
		if err := s.ResizeTo(targetRectOf(t.Spec)); err != nil {
			log.Warn("failed to update surface geometry", "key", key, "error", err)
		}
	}

	for _, key := range toDestroy {
		sv.surfaces[key].Destroy()
		delete(sv.surfaces, key)
	}

	if len(toCreate) > 0 || len(toDestroy) > 0 || len(toUpdate) > 0 {
		log.Info("reconciliation applied", "created", len(toCreate), "destroyed", len(toDestroy), "updated", len(toUpdate))
		sv.logAudit(audit.EventReconciliation, "", map[string]any{
			"created":   len(toCreate),
			"destroyed": len(toDestroy),
			"updated":   len(toUpdate),
		})
	}
}

func (sv *Supervisor) applyPauseEdges(ev event) {
	// Every monitor about to be hidden gets its frame captured first:
	// SetPaused suspends the web view, and a Surface with no prior
	// frame has nothing to fall back on if capture runs after
	// suspension. This also covers every rising edge, not just the
	// zero-paused->one-paused transition, so a second monitor pausing
	// while another is already paused still lands in the snapshot.
	if len(ev.pauseRising) > 0 && sv.snapshot != nil {
		if err := sv.snapshot.Capture(sv.topology); err != nil {
			log.Warn("failed to capture pause-time snapshot", "error", err)
		}
	}

	for _, id := range ev.pauseRising {
		for key, s := range sv.surfaces {
			if key.MonitorID == id {
				if err := s.SetPaused(true); err != nil {
					log.Warn("failed to pause surface", "key", key, "error", err)
				}
			}
		}
	}
	for _, id := range ev.pauseFalling {
		for key, s := range sv.surfaces {
			if key.MonitorID == id {
				if err := s.SetPaused(false); err != nil {
					log.Warn("failed to resume surface", "key", key, "error", err)
				}
			}
		}
	}
	if ev.globalPaused != nil {
		if !*ev.globalPaused {
			sv.logAudit(audit.EventWallpaperRestored, "", nil)
		}
		for _, s := range sv.surfaces {
			payload, err := json.Marshal(messages.NewPause(*ev.globalPaused))
			if err != nil {
				continue
			}
			_ = s.PushData(payload)
		}
	}
}

func (sv *Supervisor) applyDataUpdate(upd datapump.Update) {
	for key, s := range sv.surfaces {
		if key.MonitorID != upd.MonitorID {
			continue
		}
		if s.Generation() >= upd.Generation {
			continue
		}
		sections := s.DemandedSections()
		payload, err := json.Marshal(messages.NewRegistry(filterSections("sysdata", upd.SysData, sections), filterSections("appdata", upd.AppData, sections)))
		if err != nil {
			log.Warn("failed to marshal registry push", "key", key, "error", err)
			continue
		}
		if err := s.PushData(payload); err != nil {
			log.Warn("failed to push data update", "key", key, "error", err)
			continue
		}
		s.SetGeneration(upd.Generation)
	}
}

// filterSections narrows a dot-notation sysdata/appdata map to the
// keys under one of the demanded prefixes. Each key is matched as
// namespace+"."+key, so "appdata" selects the whole appdata map and
// "sysdata.cpu" selects its "cpu.*" keys. A nil/empty sections list
// means no demand has been made yet, so everything passes through.
func filterSections(namespace string, data map[string]any, sections []string) map[string]any {
	if len(sections) == 0 {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		path := namespace + "." + k
		for _, sec := range sections {
			if path == sec || strings.HasPrefix(path, sec+".") {
				out[k] = v
				break
			}
		}
	}
	return out
}

func (sv *Supervisor) applyCSSVars(assetID string, vars map[string]any) {
	payload, err := json.Marshal(messages.NewCSSVars(vars))
	if err != nil {
		return
	}
	for key, s := range sv.surfaces {
		if !surfaceUsesAsset(sv.cfg, key.ProfileID, assetID) {
			continue
		}
		_ = s.PushData(payload)
	}
}

func surfaceUsesAsset(cfg *config.Config, profileID, assetID string) bool {
	p, ok := cfg.Profiles[profileID]
	return ok && p.WallpaperID == assetID
}

func (sv *Supervisor) applyCursorEvent(ev samplers.CursorEvent) {
	for _, s := range sv.surfaces {
		rect := s.Rect()
		if !rect.Contains(ev.X, ev.Y) {
			continue
		}
		localX, localY := ev.X-rect.X, ev.Y-rect.Y
		nx, ny := normalize(localX, rect.W), normalize(localY, rect.H)

		var payload []byte
		var err error
		if ev.Kind == samplers.CursorClick {
			payload, err = json.Marshal(messages.NewClick(localX, localY, nx, ny))
		} else {
			payload, err = json.Marshal(messages.NewMove(localX, localY, nx, ny))
		}
		if err != nil {
			continue
		}
		_ = s.PushData(payload)
	}
}

func normalize(v, span int) float64 {
	if span <= 0 {
		return 0
	}
	return float64(v) / float64(span)
}

func (sv *Supervisor) applyKeyEvent(ev samplers.KeyEvent) {
	state := messages.KeyUp
	if ev.Down {
		state = messages.KeyDown
	}
	payload, err := json.Marshal(messages.NewKey(ev.Key, ev.VK, state))
	if err != nil {
		return
	}
	for _, s := range sv.surfaces {
		_ = s.PushData(payload)
	}
}

func (sv *Supervisor) applyAudioEvent(level float64) {
	payload, err := json.Marshal(messages.NewAudio(level))
	if err != nil {
		return
	}
	for _, s := range sv.surfaces {
		_ = s.PushData(payload)
	}
}

func (sv *Supervisor) applyAssignProfile(msg messages.AssignProfile) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	p, existed := sv.cfg.Profiles[msg.ProfileKey]
	if !existed {
		p = config.ProfileConfig{}
		sv.cfg.ProfileOrder = append(sv.cfg.ProfileOrder, msg.ProfileKey)
	}
	p.Enabled = true
	p.MonitorIndex = msg.MonitorIndex
	p.WallpaperID = msg.WallpaperID
	sv.cfg.Profiles[msg.ProfileKey] = p

	if err := config.Save(sv.cfg); err != nil {
		log.Warn("failed to persist profile assignment", "error", err)
	}
	sv.logAudit(audit.EventProfileAssigned, "", map[string]any{
		"profile":   msg.ProfileKey,
		"wallpaper": msg.WallpaperID,
		"monitor":   msg.MonitorIndex,
	})
	sv.reconcile()
}

func (sv *Supervisor) shutdown() {
	for key, s := range sv.surfaces {
		s.Destroy()
		delete(sv.surfaces, key)
	}
	sv.pool.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sv.pool.Drain(ctx)
	sv.audit.Log(audit.EventEngineStop, "", nil)
	sv.audit.Close()
}
