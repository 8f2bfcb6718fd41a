// Package systemd reports service state to the service manager (sd_notify).
//
// Every call is a no-op when the process is not started by systemd
// (NOTIFY_SOCKET unset), so callers never need to check.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. The zero value talks to $NOTIFY_SOCKET.
type Notifier struct {
	// send defaults to daemon.SdNotify; replaced in tests.
	send func(unsetEnvironment bool, state string) (bool, error)
	// watchdog defaults to daemon.SdWatchdogEnabled; replaced in tests.
	watchdog func(unsetEnvironment bool) (time.Duration, error)
}

func (n Notifier) notify(state string) (bool, error) {
	send := n.send
	if send == nil {
		send = daemon.SdNotify
	}
	return send(false, state)
}

// Ready tells the service manager that startup finished.
func (n Notifier) Ready() (bool, error) { return n.notify(daemon.SdNotifyReady) }

// Stopping tells the service manager that shutdown began.
func (n Notifier) Stopping() (bool, error) { return n.notify(daemon.SdNotifyStopping) }

// Watchdog pets the watchdog; call it at least once per WatchdogSec.
func (n Notifier) Watchdog() (bool, error) { return n.notify(daemon.SdNotifyWatchdog) }

// WatchdogInterval returns half of the unit's WatchdogSec, or 0 when the
// watchdog is not enabled for this process.
func (n Notifier) WatchdogInterval() time.Duration {
	enabled := n.watchdog
	if enabled == nil {
		enabled = daemon.SdWatchdogEnabled
	}
	d, err := enabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// Status publishes a free-form status line shown by `systemctl status`.
func (n Notifier) Status(s string) (bool, error) { return n.notify("STATUS=" + s) }
