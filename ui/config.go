package ui

// Config contains picker-specific configuration.
type Config struct {
	HomeDir string `env:"HOME"`

	// Seeds the filter input when the picker opens.
	InitialQuery string

	// For debugging the UI
	Logfile string `env:"VOX_LOGFILE"`
}
