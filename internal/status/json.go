package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Door          DoorJSON     `json:"door"`
	Siren         SirenJSON    `json:"siren"`
	Delivery      DeliveryJSON `json:"delivery"`
	Socket        LinkJSON     `json:"socket"`
	MQTT          LinkJSON     `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DoorJSON identifies the door and its debounced state.
type DoorJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Open  bool   `json:"open"`
}

// SirenJSON reports the siren output.
type SirenJSON struct {
	Active      bool `json:"active"`
	Activations int  `json:"activations"`
}

// DeliveryJSON reports the ingest connectivity mode and offline backlog.
type DeliveryJSON struct {
	Mode       string `json:"mode"`
	Buffered   int    `json:"buffered"`
	Overflowed bool   `json:"overflowed"`
}

// LinkJSON reports one outbound connection.
type LinkJSON struct {
	Connected bool   `json:"connected"`
	URL       string `json:"url"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Opened int `json:"opened"`
	Closed int `json:"closed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	SirenMs     int64  `json:"siren_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	IngestURL   string `json:"ingest_url"`
	HTTPAddr    string `json:"http_addr"`
}

// ModeString renders the delivery mode the way the status page shows it.
func ModeString(online bool) string {
	if online {
		return "ONLINE"
	}
	return "OFFLINE"
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Door.State)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		Door: DoorJSON{
			ID:    snap.Config.DoorID,
			Name:  snap.Config.DoorName,
			State: state,
			Open:  snap.Door.State.IsOpen(),
		},
		Siren: SirenJSON{
			Active:      snap.Door.SirenActive,
			Activations: snap.Door.SirenActivations,
		},
		Delivery: DeliveryJSON{
			Mode:       ModeString(snap.Door.Online),
			Buffered:   snap.Door.BufferDepth,
			Overflowed: snap.Door.BufferOverflowed,
		},
		Socket: LinkJSON{Connected: snap.SocketConnected, URL: snap.Config.SocketURL},
		MQTT:   LinkJSON{Connected: snap.MQTTConnected, URL: snap.Config.Broker},
		Counts: CountsJSON{
			Opened: snap.Door.Counts.Opened,
			Closed: snap.Door.Counts.Closed,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			SirenMs:     snap.Config.SirenMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			IngestURL:   snap.Config.IngestURL,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
