// Command stagesfw runs a simulated rack of modules: it owns the
// block-processing loop, exposes diagnostic introspection over HTTP,
// and optionally renders each module's front panel to the terminal.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/theckman/yacspin"

	"github.com/stagesfw/firmware/app"
	"github.com/stagesfw/firmware/chain"
	"github.com/stagesfw/firmware/diag"
	"github.com/stagesfw/firmware/iobuffer"
	"github.com/stagesfw/firmware/ui"
)

func main() {
	logger := log.New(os.Stdout, "stagesfw: ", log.LstdFlags)

	cfg, found, err := setupConfig()
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}
	if found {
		logger.Printf("loaded %s", ConfigFileName)
	} else {
		logger.Printf("no %s found, running with defaults", ConfigFileName)
	}

	a, err := app.New(toAppConfig(cfg), logger)
	if err != nil {
		logger.Fatalf("starting rack: %v", err)
	}

	go watchConfig(logger)

	srv := &http.Server{Addr: cfg.DiagAddr, Handler: diag.New(a.Modules)}
	go func() {
		logger.Printf("diagnostic server listening at %s", cfg.DiagAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("diagnostic server: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	waitForDiscovery(ctx, a, logger)

	source := quiescentSource(len(a.Modules), cfg.BlockSize)

	var sink func([]iobuffer.Output, []ui.Frame)
	if cfg.RenderConsole {
		sink = func(_ []iobuffer.Output, frames []ui.Frame) { renderConsole(frames) }
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	runErr := a.Run(ctx, sampleRate, source, sink)
	if runErr != nil && runErr != context.Canceled {
		logger.Printf("run loop exited: %v", runErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}

// quiescentSource returns a block source producing n all-zero blocks of
// blockSize samples each tick. No physical ADC exists in this exercise,
// so the rack runs on silence until something richer (a WAV file, a
// network feed) is wired in; ProcessBlock still drives every module's
// discovery and segment machinery against real time.
func quiescentSource(n, blockSize int) func() []iobuffer.Block {
	if blockSize <= 0 {
		blockSize = 32
	}
	blk := iobuffer.NewBlock(blockSize)
	blocks := make([]iobuffer.Block, n)
	for i := range blocks {
		blocks[i] = blk
	}
	return func() []iobuffer.Block { return blocks }
}

// waitForDiscovery shows a spinner until every module's chain reaches
// chain.StatusReady or ctx is done, ticking the rack on zero-valued
// blocks in the meantime so discovery actually progresses.
func waitForDiscovery(ctx context.Context, a *app.App, logger *log.Logger) {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " waiting for chain discovery",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopMessage:     "chain discovery complete",
	}
	spinner, err := yacspin.New(cfg)
	if err != nil {
		logger.Printf("spinner unavailable: %v", err)
		spinner = nil
	}
	if spinner != nil {
		spinner.Start()
		defer spinner.Stop()
	}

	source := quiescentSource(len(a.Modules), 8)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if allReady(a) {
			return
		}
		a.ProcessBlock(source())
		time.Sleep(time.Millisecond)
	}
}

func allReady(a *app.App) bool {
	for _, m := range a.Modules {
		if m.Offline {
			continue
		}
		if m.Chain().Status() != chain.StatusReady {
			return false
		}
	}
	return true
}

// watchConfig logs a reminder whenever ConfigFileName changes; applying
// a live config to an already-built app.App would need to tear down and
// rebuild every module's chain and link, which the rack doesn't support
// mid-flight, so this is advisory only.
func watchConfig(logger *log.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Printf("config watcher unavailable: %v", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add("."); err != nil {
		logger.Printf("config watcher: %v", err)
		return
	}
	for event := range watcher.Events {
		if event.Name == ConfigFileName && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
			logger.Printf("%s changed; restart to apply", ConfigFileName)
		}
	}
}

// renderConsole prints each module's front panel as one colored line.
func renderConsole(frames []ui.Frame) {
	for i, f := range frames {
		fmt.Printf("module %d: %s\n", i, ui.Render(f))
	}
}
