package main

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/stagesfw/firmware/app"
	"github.com/stagesfw/firmware/link"
)

// ConfigFileName is the YAML file setupConfig looks for in the working
// directory.
var ConfigFileName = "stagesfw.yml"

// ModuleConfig is the YAML-facing description of one module's settings
// path and chain link, mirroring app.ModuleConfig.
type ModuleConfig struct {
	SettingsPath string `koanf:"settings_path"`
	Advanced     bool   `koanf:"advanced"`
	Virtual      bool   `koanf:"virtual"`
	SerialLeft   string `koanf:"serial_left"`
	SerialRight  string `koanf:"serial_right"`
	Baud         int    `koanf:"baud"`
}

// Config is the top-level YAML configuration for the stagesfw process.
type Config struct {
	Modules       []ModuleConfig `koanf:"modules"`
	BlockSize     int            `koanf:"block_size"`
	SampleRate    float64        `koanf:"sample_rate"`
	TimeScale     float64        `koanf:"time_scale"`
	Chaos         string         `koanf:"chaos"`
	FactoryTest   bool           `koanf:"factory_test"`
	DiagAddr      string         `koanf:"diag_addr"`
	DefaultBaud   int            `koanf:"default_baud"`
	RenderConsole bool           `koanf:"render_console"`
}

// defaultConfig is what a config-free invocation runs: one virtual
// module, a modest sample rate, and the diagnostic server bound to
// localhost.
func defaultConfig() Config {
	return Config{
		Modules: []ModuleConfig{
			{SettingsPath: "stages0.settings", Virtual: true},
		},
		BlockSize:     32,
		SampleRate:    48000,
		Chaos:         "double-scroll",
		DiagAddr:      "127.0.0.1:8420",
		DefaultBaud:   921600,
		RenderConsole: true,
	}
}

var k = koanf.New(".")

// setupConfig loads defaultConfig, then overlays ConfigFileName if
// present; a missing file is not an error, per the convention the rest
// of the fleet's servers use. found reports whether ConfigFileName was
// actually read, for a one-line startup log.
func setupConfig() (c Config, found bool, err error) {
	if err = k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, false, err
	}
	if loadErr := k.Load(file.Provider(ConfigFileName), yaml.Parser()); loadErr != nil {
		if !strings.Contains(loadErr.Error(), "no such") { // file missing, who cares
			return Config{}, false, loadErr
		}
	} else {
		found = true
	}
	if err = k.Unmarshal("", &c); err != nil {
		return Config{}, false, err
	}
	return c, found, nil
}

// toAppConfig translates the YAML-facing Config into app.Config, filling
// in each module's link backend from its Virtual/serial fields.
func toAppConfig(c Config) app.Config {
	out := app.Config{
		BlockSize:         c.BlockSize,
		SampleRate:        c.SampleRate,
		TimeScaleOverride: c.TimeScale,
		Chaos:             c.Chaos,
		FactoryTest:       c.FactoryTest,
	}
	for _, m := range c.Modules {
		baud := m.Baud
		if baud == 0 {
			baud = c.DefaultBaud
		}
		out.Modules = append(out.Modules, app.ModuleConfig{
			SettingsPath: m.SettingsPath,
			Advanced:     m.Advanced,
			Link: app.LinkConfig{
				Virtual:     m.Virtual,
				SerialLeft:  link.PortConfig{Name: m.SerialLeft, Baud: baud},
				SerialRight: link.PortConfig{Name: m.SerialRight, Baud: baud},
			},
		})
	}
	return out
}
