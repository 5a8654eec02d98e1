package app

import (
	"path/filepath"
	"testing"

	"github.com/stagesfw/firmware/chain"
	"github.com/stagesfw/firmware/iobuffer"
)

func twoModuleConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		BlockSize: 8,
		Modules: []ModuleConfig{
			{SettingsPath: filepath.Join(dir, "m0.bin"), Link: LinkConfig{Virtual: true}},
			{SettingsPath: filepath.Join(dir, "m1.bin"), Link: LinkConfig{Virtual: true}},
		},
	}
}

func TestNewBuildsOneModulePerConfigEntry(t *testing.T) {
	a, err := New(twoModuleConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(a.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(a.Modules))
	}
}

func TestProcessBlockDrivesDiscoveryToReady(t *testing.T) {
	a, err := New(twoModuleConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	blk := iobuffer.NewBlock(8)
	ins := []iobuffer.Block{blk, blk}
	for i := 0; i < 9000; i++ {
		a.ProcessBlock(ins)
	}

	for i, m := range a.Modules {
		if m.Chain().Status() != chain.StatusReady {
			t.Fatalf("module %d: expected Ready, got %v", i, m.Chain().Status())
		}
	}
	if a.Modules[0].Chain().Size != 2 || a.Modules[1].Chain().Size != 2 {
		t.Fatalf("expected chain size 2, got %d and %d", a.Modules[0].Chain().Size, a.Modules[1].Chain().Size)
	}
}

func TestProcessModuleRecoversPanicAndMarksOffline(t *testing.T) {
	a, err := New(twoModuleConfig(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m := a.Modules[0]
	m.set = nil // guarantees Process panics on first use of settings

	out, _ := a.processModule(m, iobuffer.NewBlock(8))
	if !m.Offline {
		t.Fatal("expected module to be marked offline after a panic")
	}
	if len(out.Codes[0]) != 8 {
		t.Fatalf("expected a zero-valued 8-sample output, got %d samples", len(out.Codes[0]))
	}

	out2, frame2 := a.processModule(m, iobuffer.NewBlock(8))
	if len(out2.Codes[0]) != 8 || frame2.Pressed[0] {
		t.Fatal("expected subsequent ticks on an offline module to be cheap no-ops")
	}
}
