// Package watchdog integrates with the systemd service manager: readiness
// notification on startup and keepalive pings while the process is healthy.
//
// Outside of systemd (no NOTIFY_SOCKET) every call is a cheap no-op, so the
// daemon behaves identically under systemd and in the foreground.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"tickd/internal/scheduler"
	logx "tickd/pkg/logx"
)

type Config struct {
	Enabled bool
}

type Watchdog struct {
	log     logx.Logger
	enabled bool

	mu       sync.Mutex
	interval time.Duration // WatchdogSec from the unit; 0 when not armed
	lastPing time.Time
}

func New(cfg Config, log logx.Logger) *Watchdog {
	w := &Watchdog{log: log, enabled: cfg.Enabled}
	if !cfg.Enabled {
		return w
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("watchdog detection failed", logx.Err(err))
		return w
	}
	w.interval = interval
	if interval > 0 {
		log.Info("systemd watchdog armed", logx.Duration("interval", interval))
	}
	return w
}

// NotifyReady tells systemd the service finished starting up.
func (w *Watchdog) NotifyReady() {
	if !w.enabled {
		return
	}
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		w.log.Warn("sd_notify ready failed", logx.Err(err))
		return
	}
	if sent {
		w.log.Debug("sd_notify ready sent")
	}
}

// NotifyStopping tells systemd a clean shutdown has begun.
func (w *Watchdog) NotifyStopping() {
	if !w.enabled {
		return
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// Armed reports whether the unit requested keepalive pings.
func (w *Watchdog) Armed() bool {
	return w.enabled && w.interval > 0
}

// PingJob returns a job meant to run on every tick. It pings at half the
// configured watchdog interval so one missed tick never kills the unit, and
// stays silent between pings.
func (w *Watchdog) PingJob() scheduler.Job {
	return func(ctx context.Context) error {
		if !w.Armed() {
			return nil
		}
		w.mu.Lock()
		due := time.Since(w.lastPing) >= w.interval/2
		if due {
			w.lastPing = time.Now()
		}
		w.mu.Unlock()
		if !due {
			return nil
		}
		if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
			return err
		}
		return nil
	}
}
