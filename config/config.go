// Package config loads typed settings from a file and the environment, and
// reloads them when the file changes.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const reloadDebounce = 100 * time.Millisecond

// Config holds the current value of T. A reload that fails to read, decode or
// validate keeps the previous value and is reported to the error handlers.
type Config[T any] struct {
	v    *viper.Viper
	path string

	validate func(T) error

	mu         sync.RWMutex
	value      T
	onChange   []func(old, new T)
	onRejected []func(error)
}

type Option[T any] func(*Config[T])

func WithDefaults[T any](defaults map[string]any) Option[T] {
	return func(c *Config[T]) {
		for k, v := range defaults {
			c.v.SetDefault(k, v)
		}
	}
}

// WithEnv binds PREFIX_SECTION_KEY environment variables. Only keys that have
// a default or appear in the file are picked up.
func WithEnv[T any](prefix string) Option[T] {
	return func(c *Config[T]) {
		c.v.SetEnvPrefix(prefix)
		c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		c.v.AutomaticEnv()
	}
}

// WithValidator checks every decoded value, at load and on reload.
func WithValidator[T any](fn func(T) error) Option[T] {
	return func(c *Config[T]) { c.validate = fn }
}

// Load reads the config file at path and watches it for changes. An empty
// path skips the file and builds the value from defaults and the environment.
func Load[T any](path string, opts ...Option[T]) (*Config[T], error) {
	c := &Config[T]{v: viper.New(), path: path}
	for _, opt := range opts {
		opt(c)
	}

	val, err := c.decode(path != "")
	if err != nil {
		return nil, err
	}
	c.value = val

	if path != "" {
		c.watch()
	}
	return c, nil
}

// Get returns a deep copy of the current value.
func (c *Config[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return deepCopy(c.value)
}

func (c *Config[T]) Path() string { return c.path }

// OnChange registers a callback run after a reload that changed the value.
// Panicking callbacks are ignored.
func (c *Config[T]) OnChange(fn func(old, new T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// OnReloadError registers a callback for reloads that were rejected.
func (c *Config[T]) OnReloadError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRejected = append(c.onRejected, fn)
}

func Changed[T any](old, new T) bool {
	return !reflect.DeepEqual(old, new)
}

func (c *Config[T]) decode(readFile bool) (T, error) {
	var val T
	if readFile {
		c.v.SetConfigFile(c.path)
		if err := c.v.ReadInConfig(); err != nil {
			return val, fmt.Errorf("read %s: %w", c.path, err)
		}
	}
	if err := c.v.Unmarshal(&val); err != nil {
		return val, fmt.Errorf("decode %s: %w", c.path, err)
	}
	if c.validate != nil {
		if err := c.validate(val); err != nil {
			return val, fmt.Errorf("invalid config: %w", err)
		}
	}
	return val, nil
}

func deepCopy[T any](src T) T {
	var dst T
	data, _ := json.Marshal(src)
	_ = json.Unmarshal(data, &dst)
	return dst
}

func (c *Config[T]) watch() {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	c.v.OnConfigChange(func(fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, c.reload)
	})
	c.v.WatchConfig()
}

func (c *Config[T]) reload() {
	c.mu.Lock()
	old := c.value
	val, err := c.decode(true)
	if err == nil {
		c.value = val
	}
	onChange := append(([]func(old, new T))(nil), c.onChange...)
	onRejected := append(([]func(error))(nil), c.onRejected...)
	c.mu.Unlock()

	if err != nil {
		for _, fn := range onRejected {
			notify(func() { fn(err) })
		}
		return
	}
	if !Changed(old, val) {
		return
	}
	old, val = deepCopy(old), deepCopy(val)
	for _, fn := range onChange {
		notify(func() { fn(old, val) })
	}
}

func notify(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
