package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/siqueiraa/FraudFlow/pkg/metrics"
	"github.com/siqueiraa/FraudFlow/pkg/risk"
)

// PolicySink receives reloaded risk policies.
type PolicySink interface {
	SetPolicy(risk.Policy)
}

// Watcher reloads the risk section of a config file when the file changes.
// Other sections need a restart.
type Watcher struct {
	path     string
	sink     PolicySink
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher watches the directory holding path, which also catches editors
// that replace the file through a rename.
func NewWatcher(path string, sink PolicySink) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     filepath.Clean(path),
		sink:     sink,
		debounce: 250 * time.Millisecond,
		watcher:  fw,
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.Reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Config] watcher error: %v", err)
		}
	}
}

// Reload re-reads the file and pushes its risk policy to the sink. An
// invalid file keeps the current policy.
func (w *Watcher) Reload() bool {
	cfg, err := LoadFile(w.path)
	if err != nil {
		metrics.PolicyReloads.WithLabelValues("error").Inc()
		log.Printf("[Config] reload of %s rejected, keeping current policy: %v", w.path, err)
		return false
	}
	p := cfg.Risk.Policy()
	w.sink.SetPolicy(p)
	metrics.PolicyReloads.WithLabelValues("ok").Inc()
	log.Printf("[Config] risk policy reloaded: threshold=%.2f countries=%v", p.AmountThreshold, p.Countries())
	return true
}
