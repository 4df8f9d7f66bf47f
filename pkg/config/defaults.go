package config

const (
	defaultBackendTarget = "http://localhost:8000"
	defaultBackendModel  = "default"

	defaultStorageDriver = "sqlite"

	defaultEventStreamTopic = "isastream.messages"

	defaultReplayListen  = ":8089"
	defaultReplayDelayMs = 20
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Backend: BackendConfig{
			Target: defaultBackendTarget,
			Model:  defaultBackendModel,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		EventStream: EventStreamConfig{
			Topic: defaultEventStreamTopic,
		},
		Replay: ReplayConfig{
			Listen:  defaultReplayListen,
			DelayMs: defaultReplayDelayMs,
		},
	}
}
