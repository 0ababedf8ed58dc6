package planner

// Settings are user preferences for reminders. They are stored and reported
// but nothing acts on them yet.
type Settings struct {
	NotificationsEnabled bool `json:"notificationsEnabled" yaml:"notifications_enabled"`
	SoundEnabled         bool `json:"soundEnabled" yaml:"sound_enabled"`
	VibrationEnabled     bool `json:"vibrationEnabled" yaml:"vibration_enabled"`
}

// DefaultSettings enables everything.
func DefaultSettings() Settings {
	return Settings{
		NotificationsEnabled: true,
		SoundEnabled:         true,
		VibrationEnabled:     true,
	}
}
