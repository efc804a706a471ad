package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sentinel-wallpaper/engine/internal/asset"
	"github.com/sentinel-wallpaper/engine/internal/audit"
	"github.com/sentinel-wallpaper/engine/internal/config"
	"github.com/sentinel-wallpaper/engine/internal/datapump"
	"github.com/sentinel-wallpaper/engine/internal/editable"
	"github.com/sentinel-wallpaper/engine/internal/hostlocator"
	"github.com/sentinel-wallpaper/engine/internal/ipc"
	"github.com/sentinel-wallpaper/engine/internal/logging"
	"github.com/sentinel-wallpaper/engine/internal/optionsserver"
	"github.com/sentinel-wallpaper/engine/internal/pause"
	"github.com/sentinel-wallpaper/engine/internal/platform"
	"github.com/sentinel-wallpaper/engine/internal/samplers"
	"github.com/sentinel-wallpaper/engine/internal/supervisor"
	"github.com/sentinel-wallpaper/engine/internal/topology"
)

var (
	version = "0.1.0"
	cfgFile string
)

var log = logging.L("main")

const defaultPipeName = `\\.\pipe\sentinel`

// Process exit codes surfaced to the service manager.
const (
	exitClean               = 0
	exitConfigUnreadable    = 2
	exitTopologyUnrecovered = 3
	exitIPCUnreachable      = 4
)

var rootCmd = &cobra.Command{
	Use:   "wallpaper-engine",
	Short: "Sentinel Wallpaper Engine",
	Long:  "Renders interactive HTML/CSS/JS wallpaper bundles beneath desktop icons across every monitor.",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the engine",
	Run: func(cmd *cobra.Command, args []string) {
		if isWindowsService() {
			if err := runAsService(startEngine); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
		runEngine()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Sentinel Wallpaper Engine v%s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check engine configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		checkStatus()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is Addons/wallpaper/config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging sets up structured logging from config. Call after config.Load().
func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout

	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

// engineComponents holds every long-running piece wired together by
// runEngine, so service wrappers (Windows SCM) can shut them down.
type engineComponents struct {
	cancel      context.CancelFunc
	sv          *supervisor.Supervisor
	topoWatcher *topology.Watcher
	pauseCtl    *pause.Controller
	pump        *datapump.Pump
	store       *editable.Store
	optsSrv     *optionsserver.Server
	ipcClient   *ipc.Client
	auditLog    *audit.Logger
	wg          chan struct{}
}

func shutdownEngine(comps *engineComponents) {
	if comps == nil {
		return
	}
	comps.cancel()
	comps.ipcClient.Close()
	<-comps.wg
}

// runEngine wires every component per the engine's concurrency model:
// one Supervisor goroutine reconciling Surfaces against config and
// topology, fed by bridge goroutines translating the topology
// watcher, data pump, and samplers into Supervisor events.
func runEngine() {
	comps, err := startEngine()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errIPCUnreachable) {
			os.Exit(exitIPCUnreachable)
		}
		os.Exit(exitConfigUnreadable)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("shutting down")
		shutdownEngine(comps)
		log.Info("engine stopped")
	case topoErr := <-comps.topoWatcher.Fatal():
		log.Error("topology loss irrecoverable, stopping", "error", topoErr)
		shutdownEngine(comps)
		os.Exit(exitTopologyUnrecovered)
	}
}

// ipcStartupGrace bounds how long startEngine waits for the backend's
// named pipe to accept a call before giving up, per the cold-start
// contract (exit 4).
const ipcStartupGrace = 15 * time.Second

var errIPCUnreachable = errors.New("ipc channel unreachable after startup grace period")

// waitForIPC polls the backend until one call succeeds or the grace
// period elapses.
func waitForIPC(client *ipc.Client) error {
	deadline := time.Now().Add(ipcStartupGrace)
	var lastErr error
	for {
		if _, err := client.ListSysdata(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %v", errIPCUnreachable, lastErr)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func startEngine() (*engineComponents, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	initLogging(cfg)

	auditLog, err := audit.NewLogger(cfg)
	if err != nil {
		log.Warn("audit logger unavailable, continuing without a tamper-evident trail", "error", err)
	}
	auditLog.Log(audit.EventEngineStart, "", map[string]any{"version": version})

	plat := platform.New()
	ipcClient := ipc.New(defaultPipeName)
	if err := waitForIPC(ipcClient); err != nil {
		ipcClient.Close()
		return nil, err
	}

	registry := asset.New(ipcClient, config.AssetsDir())
	if err := registry.Load(); err != nil {
		log.Warn("asset registry load failed, continuing with whatever loaded", "error", err)
	}

	host := hostlocator.New(plat)

	store := editable.New(registry, nil)
	store.Load()

	snapCache := config.RecoveryCacheDir()
	if err := os.MkdirAll(snapCache, 0700); err != nil {
		log.Warn("failed to create recovery cache dir", "error", err)
	}
	recoveryCachePath := filepath.Join(snapCache, "recovery.png")

	// Applied before any Surface exists, so a crash-recovery or
	// cold-boot window is never blank while the desktop host and
	// web views stand up.
	if err := pause.ApplyRecoveryCacheIfPresent(plat, recoveryCachePath); err != nil {
		log.Warn("failed to apply recovery cache on startup", "error", err)
	}

	sv := supervisor.New(plat, host, registry, store, cfg, nil, auditLog)
	store.SetSink(sv)

	snapshot := pause.NewSnapshotManager(plat, sv, recoveryCachePath)
	sv.SetSnapshot(snapshot)

	watcher := topology.New(plat)

	pausingCfg := cfg.Settings.Performance.Pausing
	idleMode := pause.ModeOff
	if pausingCfg.IdleTimeoutMs > 0 {
		idleMode = pause.ModePerMonitor
	}
	pauseCtl := pause.New(
		pause.IPCStateSource{Client: ipcClient, Idle: plat},
		pause.Config{
			Focus:         pause.Mode(pausingCfg.Focus),
			Maximized:     pause.Mode(pausingCfg.Maximized),
			Fullscreen:    pause.Mode(pausingCfg.Fullscreen),
			Idle:          idleMode,
			IdleTimeoutMs: pausingCfg.IdleTimeoutMs,
			CheckInterval: time.Duration(pausingCfg.CheckIntervalMs) * time.Millisecond,
		},
		sv,
	)

	interactionsCfg := cfg.Settings.Performance.Interactions
	audioSrcCfg := cfg.Settings.Performance.Audio
	audioCfg := samplers.AudioConfig{
		SampleInterval:   time.Duration(audioSrcCfg.SampleIntervalMs) * time.Millisecond,
		EndpointRefresh:  time.Duration(audioSrcCfg.EndpointRefreshMs) * time.Millisecond,
		RetryInterval:    time.Duration(audioSrcCfg.RetryIntervalMs) * time.Millisecond,
		ChangeThreshold:  audioSrcCfg.ChangeThreshold,
		QuantizeDecimals: audioSrcCfg.QuantizeDecimals,
	}
	samp := samplers.New(
		plat,
		time.Duration(interactionsCfg.PollIntervalMs)*time.Millisecond,
		interactionsCfg.MoveThresholdPx,
		time.Duration(interactionsCfg.PollIntervalMs)*time.Millisecond,
		audioCfg,
	)

	pump := datapump.New(datapump.IPCBackend{Client: ipcClient}, time.Duration(audioSrcCfg.EndpointRefreshMs)*time.Millisecond)

	optsSrv := optionsserver.New("127.0.0.1:47811", filepath.Join(config.ConfigDir(), "options"), sv, watcher, pauseCtl)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	watcherCfg := cfg.Settings.Performance.Watcher

	go func() {
		defer close(done)
		go sv.RunTopologyWatcher(ctx, watcher)
		go sv.RunDataPump(ctx, pump)
		go sv.RunSamplers(ctx, samp)
		go store.Run(ctx)
		go pump.Run(ctx)
		go pauseCtl.Run(ctx)
		go samp.Run(ctx)
		go optsSrv.Run(ctx)
		go snapshot.RunRecapture(ctx, sv.Topology, func() bool {
			for _, v := range pauseCtl.Verdicts() {
				if v.Paused {
					return true
				}
			}
			return false
		})
		if watcherCfg.Enabled {
			go config.WatchConfig(ctx, cfgFile, watcherCfg.IntervalMs, sv.ReloadConfig)
		}
		if err := watcher.Start(ctx); err != nil {
			log.Error("topology watcher failed to start", "error", err)
		}
		sv.Run(ctx)
	}()

	return &engineComponents{
		cancel:      cancel,
		sv:          sv,
		topoWatcher: watcher,
		pauseCtl:    pauseCtl,
		pump:        pump,
		store:       store,
		optsSrv:     optsSrv,
		ipcClient:   ipcClient,
		auditLog:    auditLog,
		wg:          done,
	}, nil
}

func checkStatus() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Println("Status: configuration unreadable")
		return
	}
	fmt.Println("Status: configured")
	fmt.Printf("Config dir: %s\n", config.ConfigDir())
	fmt.Printf("Assets dir: %s\n", config.AssetsDir())
	fmt.Printf("Profiles: %d\n", len(cfg.Profiles))
}
