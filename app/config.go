package app

import "github.com/stagesfw/firmware/link"

// LinkConfig selects a module's chain transport: either a virtual
// Bus endpoint (for an in-process simulated rack) or a real two-UART
// Serial connection.
type LinkConfig struct {
	Virtual     bool
	SerialLeft  link.PortConfig
	SerialRight link.PortConfig
}

// ModuleConfig is one module's static configuration: persisted-settings
// path, whether it runs in "advanced" discovery mode, and its chain
// transport.
type ModuleConfig struct {
	SettingsPath string
	Advanced     bool
	Link         LinkConfig
}

// Config is the whole simulated rack's configuration, the host
// analogue of the module-count/serial-path/tunables YAML cmd/stagesfw
// loads via koanf.
type Config struct {
	Modules []ModuleConfig

	// BlockSize is the number of gate/output samples processed per
	// tick; zero means "use the package default". SampleRate is carried
	// for the caller: New does not read it, and Run takes its pacing
	// rate as an argument instead.
	BlockSize  int
	SampleRate float64

	// TimeScaleOverride, if nonzero, replaces dsp.TimeScale for the
	// whole rack: the timeScale tunable, kept as a package variable
	// overridable from config.
	TimeScaleOverride float64

	// Chaos selects which attractor segment.ChaosMode variant runs
	// for every module.
	Chaos string // "double-scroll" (default) or "thomas-symmetric"

	FactoryTest bool
}
