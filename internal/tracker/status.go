package tracker

import (
	"github.com/shaunagostinho/geotrack/internal/gps"
	"github.com/shaunagostinho/geotrack/internal/uplink"
)

// Category is the visual class of the status banner.
type Category string

const (
	CategoryInactive Category = "inactive"
	CategoryActive   Category = "active"
	CategoryError    Category = "error"
)

// Status is the message shown in the status banner.
type Status struct {
	Message  string   `json:"message"`
	Category Category `json:"category"`
}

const (
	MsgIdle           = "Click start to begin tracking"
	MsgStarting       = "Starting location tracking..."
	MsgActive         = "Location tracking active"
	MsgStopped        = "Location tracking stopped"
	MsgNotSupported   = "Geolocation is not supported by this device"
	MsgSendFailed     = "Failed to send location to server"
	MsgServerUp       = "Ready to track - server is reachable"
	MsgServerDegraded = "Server reachable but reported issues"
	MsgServerDown     = "Server not reachable - check the endpoint URL"
)

// FailureMessage returns the banner text for a failed capture.
func FailureMessage(code gps.ErrorCode) string {
	switch code {
	case gps.PermissionDenied:
		return "Location access denied by user"
	case gps.PositionUnavailable:
		return "Location information unavailable"
	case gps.Timeout:
		return "Location request timed out"
	default:
		return "An unknown error occurred while getting location"
	}
}

// HealthStatus returns the idle banner for a probe result.
func HealthStatus(h uplink.Health) Status {
	switch h {
	case uplink.HealthUp:
		return Status{Message: MsgServerUp, Category: CategoryInactive}
	case uplink.HealthDegraded:
		return Status{Message: MsgServerDegraded, Category: CategoryInactive}
	default:
		return Status{Message: MsgServerDown, Category: CategoryInactive}
	}
}
