package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/your-org/auth-gateway/pkg/logger"
)

// PolicyWatcher watches a rate-limit policies file and delivers parsed
// updates. Policy tuning is the one piece of configuration operators change
// while the gateway is serving traffic, so it gets hot reload; everything
// else requires a restart.
type PolicyWatcher struct {
	path     string
	onUpdate func(map[string]PolicyConfig)
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
}

// NewPolicyWatcher creates a watcher for the given policies file. onUpdate is
// called with the full parsed policy set after every successful reload.
func NewPolicyWatcher(path string, onUpdate func(map[string]PolicyConfig)) (*PolicyWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("policies path is empty")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which would drop a
	// watch on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	return &PolicyWatcher{path: path, onUpdate: onUpdate, watcher: w}, nil
}

// LoadPolicies parses the policies file once.
func LoadPolicies(path string) (map[string]PolicyConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read policies file: %w", err)
	}
	policies := make(map[string]PolicyConfig)
	if err := v.UnmarshalKey("policies", &policies); err != nil {
		return nil, fmt.Errorf("failed to parse policies file: %w", err)
	}
	for name, p := range policies {
		if p.MaxPoints <= 0 || p.Window <= 0 || p.BlockDuration <= 0 {
			return nil, fmt.Errorf("policy %s: max_points, window and block_duration must be positive", name)
		}
	}
	return policies, nil
}

// Start begins watching. Reloads are debounced; a parse failure keeps the
// previous policy set.
func (pw *PolicyWatcher) Start(ctx context.Context) {
	ctx, pw.cancel = context.WithCancel(ctx)

	go func() {
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-pw.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(pw.path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, pw.reload)
			case err, ok := <-pw.watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("policy watcher error", logger.Err(err))
			}
		}
	}()

	logger.Info("policy watcher started", logger.String("path", pw.path))
}

func (pw *PolicyWatcher) reload() {
	policies, err := LoadPolicies(pw.path)
	if err != nil {
		logger.Warn("policy reload failed, keeping previous policies",
			logger.String("path", pw.path),
			logger.Err(err),
		)
		return
	}
	pw.onUpdate(policies)
	logger.Info("rate limit policies reloaded",
		logger.String("path", pw.path),
		logger.Int("policies", len(policies)),
	)
}

// Close stops watching and releases resources.
func (pw *PolicyWatcher) Close() error {
	if pw.cancel != nil {
		pw.cancel()
	}
	return pw.watcher.Close()
}
