//go:build windows

package main

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows/svc"
)

// isWindowsService reports whether the process was started by the Windows
// Service Control Manager. Must be called early — before any console I/O.
func isWindowsService() bool {
	ok, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return ok
}

// wallpaperService implements svc.Handler for the Windows SCM.
type wallpaperService struct {
	startFn  func() (*engineComponents, error)
	stopOnce sync.Once
	stopCh   chan struct{}
}

// runAsService runs the engine under the Windows Service Control Manager.
// startFn is called once the SCM has accepted the service start; it must
// return the running components so they can be shut down on SCM stop.
func runAsService(startFn func() (*engineComponents, error)) error {
	h := &wallpaperService{
		startFn: startFn,
		stopCh:  make(chan struct{}),
	}
	return svc.Run(windowsServiceName, h)
}

// Execute is the SCM callback. It signals SERVICE_START_PENDING, calls
// startFn, signals SERVICE_RUNNING once startFn succeeds, then blocks
// until the SCM sends Stop or Shutdown.
func (s *wallpaperService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	comps, err := s.startFn()
	if err != nil {
		log.Error("engine start failed", "error", err)
		changes <- svc.Status{State: svc.StopPending}
		return true, 1 // report error to SCM
	}

	changes <- svc.Status{State: svc.Running, Accepts: accepted}
	log.Info("engine running as Windows service")

	for {
		select {
		case cr := <-r:
			switch cr.Cmd {
			case svc.Interrogate:
				changes <- cr.CurrentStatus
			case svc.Stop, svc.Shutdown:
				log.Info("SCM requested stop")
				changes <- svc.Status{State: svc.StopPending}
				shutdownEngine(comps)
				return false, 0
			default:
				log.Warn(fmt.Sprintf("unexpected SCM control request #%d", cr.Cmd))
			}
		case topoErr := <-comps.topoWatcher.Fatal():
			log.Error("topology loss irrecoverable, stopping service", "error", topoErr)
			changes <- svc.Status{State: svc.StopPending}
			shutdownEngine(comps)
			return false, exitTopologyUnrecovered
		}
	}
}
