package main

import "testing"

func TestToAppConfigFillsDefaultBaud(t *testing.T) {
	c := Config{
		DefaultBaud: 9600,
		Modules: []ModuleConfig{
			{SettingsPath: "a.bin", SerialLeft: "/dev/ttyS0", SerialRight: "/dev/ttyS1"},
			{SettingsPath: "b.bin", SerialLeft: "/dev/ttyS2", SerialRight: "/dev/ttyS3", Baud: 57600},
		},
	}
	out := toAppConfig(c)
	if len(out.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(out.Modules))
	}
	if out.Modules[0].Link.SerialLeft.Baud != 9600 {
		t.Fatalf("expected default baud to fill in, got %d", out.Modules[0].Link.SerialLeft.Baud)
	}
	if out.Modules[1].Link.SerialLeft.Baud != 57600 {
		t.Fatalf("expected explicit baud to survive, got %d", out.Modules[1].Link.SerialLeft.Baud)
	}
}

func TestToAppConfigPreservesVirtualFlag(t *testing.T) {
	c := Config{
		Modules: []ModuleConfig{
			{SettingsPath: "a.bin", Virtual: true},
			{SettingsPath: "b.bin", Virtual: false, SerialLeft: "/dev/ttyS0"},
		},
	}
	out := toAppConfig(c)
	if !out.Modules[0].Link.Virtual {
		t.Fatal("expected module 0 to stay virtual")
	}
	if out.Modules[1].Link.Virtual {
		t.Fatal("expected module 1 to stay non-virtual")
	}
}

func TestDefaultConfigHasOneVirtualModule(t *testing.T) {
	c := defaultConfig()
	if len(c.Modules) != 1 || !c.Modules[0].Virtual {
		t.Fatal("expected default config to describe one virtual module")
	}
}
