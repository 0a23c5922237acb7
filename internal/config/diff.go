package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CaptionsChanged is set when caption or timing options changed. Live
	// sessions pick them up through [Config.SessionOptions].
	CaptionsChanged bool

	// CaptionModeChanged is set when the text source selection changed.
	CaptionModeChanged bool

	// RestartRequired lists changed sections that only take effect after a
	// restart.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oc, nc := old.Captions, new.Captions
	d.CaptionModeChanged = oc.CaptionMode != nc.CaptionMode
	// Mode, font and image settings are read when a connection starts.
	oc.CaptionMode, nc.CaptionMode = "", ""
	if !reflect.DeepEqual(oc, nc) || old.Timing != new.Timing {
		d.CaptionsChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.TickRate != new.Server.TickRate ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) ||
		!reflect.DeepEqual(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	return d
}
