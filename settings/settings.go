// Package settings loads, saves and watches the Wingman settings file.
//
// The file is plain JSON shared with the desktop settings panel:
//
//	{"provider": "openai", "modelId": "gpt-4.1-mini", "backendUrl": "", "apiKey": "", "temperature": 0.2}
//
// Unset fields take the defaults from core.DefaultAgentConfiguration, and
// WINGMAN_* environment variables override the file.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/logging"
	"github.com/spf13/viper"
)

const (
	// FileName is the settings file name inside the app data directory.
	FileName = "wingman-settings.json"

	// DefaultDebounce is how long Watch waits for writes to settle.
	DefaultDebounce = 200 * time.Millisecond

	appDirName      = "Wingman"
	xdgAppDirName   = "wingman"
	settingsDirMode = 0o700
	settingsMode    = 0o600
	tempFilePattern = ".wingman-settings-*.json.tmp"
)

// Settings keys and the environment variables overriding them.
var envBindings = map[string]string{
	"provider":    "WINGMAN_PROVIDER",
	"modelId":     "WINGMAN_MODEL_ID",
	"backendUrl":  "WINGMAN_BACKEND_URL",
	"apiKey":      "WINGMAN_API_KEY",
	"temperature": "WINGMAN_TEMPERATURE",
}

// DefaultDir returns the per-OS app data directory.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appDirName), nil
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, appDirName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, xdgAppDirName), nil
	}
}

// DefaultPath returns the settings file path inside DefaultDir.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Options configures a Store.
type Options struct {
	// Path overrides DefaultPath.
	Path string
	// Debounce overrides DefaultDebounce for Watch.
	Debounce time.Duration
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Store reads and writes one settings file.
type Store struct {
	path     string
	debounce time.Duration
	logger   logging.Logger
	mu       sync.Mutex
}

// New creates a Store for the default path unless Options.Path is set.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Debounce: DefaultDebounce}
	for _, fn := range optFns {
		fn(&opts)
	}

	path := opts.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	return &Store{
		path:     filepath.Clean(abs),
		debounce: opts.Debounce,
		logger:   logging.OrNoOp(opts.Logger),
	}, nil
}

// Path returns the settings file path.
func (s *Store) Path() string { return s.path }

// Load reads the settings. A missing or unreadable file yields the defaults;
// only a cancelled ctx is an error.
func (s *Store) Load(ctx context.Context) (core.AgentConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return core.AgentConfiguration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(), nil
}

func (s *Store) load() core.AgentConfiguration {
	v := s.newViper()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("settings file unreadable, using defaults", "path", s.path, "error", err)
		}
	}

	return core.AgentConfiguration{
		Provider:    v.GetString("provider"),
		ModelID:     v.GetString("modelId"),
		BackendURL:  v.GetString("backendUrl"),
		APIKey:      v.GetString("apiKey"),
		Temperature: temperature(v.Get("temperature")),
	}
}

func (s *Store) newViper() *viper.Viper {
	defaults := core.DefaultAgentConfiguration()

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")

	v.SetDefault("provider", defaults.Provider)
	v.SetDefault("modelId", defaults.ModelID)
	v.SetDefault("backendUrl", defaults.BackendURL)
	v.SetDefault("apiKey", defaults.APIKey)
	v.SetDefault("temperature", defaults.Temperature)

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	return v
}

// temperature accepts numbers and numeric strings (environment overrides);
// anything else is the default.
func temperature(raw any) float64 {
	switch t := raw.(type) {
	case float64:
		return core.ClampTemperature(t)
	case float32:
		return core.ClampTemperature(float64(t))
	case int:
		return core.ClampTemperature(float64(t))
	case int64:
		return core.ClampTemperature(float64(t))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return core.DefaultTemperature
		}
		return core.ClampTemperature(f)
	default:
		return core.DefaultTemperature
	}
}

// Save normalizes cfg, writes it atomically and returns what was written.
func (s *Store) Save(ctx context.Context, cfg core.AgentConfiguration) (core.AgentConfiguration, error) {
	if err := ctx.Err(); err != nil {
		return core.AgentConfiguration{}, err
	}

	cfg = cfg.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return core.AgentConfiguration{}, fmt.Errorf("encode settings: %w", err)
	}

	if err := s.write(data); err != nil {
		return core.AgentConfiguration{}, err
	}

	s.logger.Debug("settings saved", "path", s.path)

	return cfg, nil
}

func (s *Store) write(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, settingsDirMode); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}

	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}

	if err := tmp.Chmod(settingsMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp settings file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	cleanup = false

	return nil
}

// Watch calls fn with freshly loaded settings after every change of the
// settings file until ctx ends. Bursts of writes within the debounce window
// produce one call. fn runs on the watcher goroutine.
func (s *Store) Watch(ctx context.Context, fn func(core.AgentConfiguration)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, settingsDirMode); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}

	// The directory is watched because atomic saves replace the file.
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch settings directory: %w", err)
	}

	go s.watchLoop(ctx, w, fn)

	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher, fn func(core.AgentConfiguration)) {
	defer func() { _ = w.Close() }()

	timer := time.NewTimer(s.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(s.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("settings watcher error", "error", err)
		case <-timer.C:
			s.mu.Lock()
			cfg := s.load()
			s.mu.Unlock()

			s.logger.Debug("settings changed", "path", s.path)
			fn(cfg)
		}
	}
}
