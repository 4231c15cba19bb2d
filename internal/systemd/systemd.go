// Package systemd integrates with the service manager: socket activation
// for the panel listener and sd_notify state changes.
package systemd

import (
	"fmt"
	"net"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// PanelListenerName is the FileDescriptorName= of the panel socket.
const PanelListenerName = "panel"

// Listeners holds systemd-activated listeners.
type Listeners struct {
	Panel     net.Listener
	Activated bool
}

// GetListeners retrieves socket-activated file descriptors. It returns an
// empty, non-activated set when not running under socket activation.
func GetListeners() (*Listeners, error) {
	listeners := &Listeners{}

	named, err := activation.ListenersWithNames()
	if err != nil {
		return nil, fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if len(named) == 0 {
		return listeners, nil
	}
	listeners.Activated = true

	if lns, ok := named[PanelListenerName]; ok && len(lns) > 0 {
		listeners.Panel = lns[0]
	}
	return listeners, nil
}

// NotifyReady sends READY=1. Outside systemd this is a no-op.
func NotifyReady() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		return fmt.Errorf("failed to send sd_notify: %w", err)
	}
	return nil
}

// NotifyStopping sends STOPPING=1. Outside systemd this is a no-op.
func NotifyStopping() error {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		return fmt.Errorf("failed to send sd_notify stopping: %w", err)
	}
	return nil
}
