// Package config loads and persists the agent's two JSON documents:
// connection.json (ConnectionConfig) and config.json (general settings).
// Reads are layered defaults -> file -> environment via viper; writes
// always go through writeAtomic (write temp, fsync, rename) regardless of
// viper, since viper itself is not a safe concurrent writer.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConnectionConfig is persisted atomically as connection.json.
type ConnectionConfig struct {
	ServerURL        string `json:"server_url" mapstructure:"server_url"`
	EndpointUUID     string `json:"endpoint_uuid,omitempty" mapstructure:"endpoint_uuid"`
	CustomerID       string `json:"customer_id,omitempty" mapstructure:"customer_id"`
	AgentName        string `json:"agent_name,omitempty" mapstructure:"agent_name"`
	ConnectOnStartup bool   `json:"connect_on_startup" mapstructure:"connect_on_startup"`
}

// Settings is the general config.json document. Fields are a whitelist:
// the loopback /settings handler only ever merges these.
type Settings struct {
	LogPath         string `json:"log_path,omitempty" mapstructure:"log_path"`
	HTTPBindHost    string `json:"http_bind_host" mapstructure:"http_bind_host"`
	HTTPPort        int    `json:"http_port" mapstructure:"http_port"`
	WebSocketPort   int    `json:"websocket_port" mapstructure:"websocket_port"`
	GUIBridgePort   int    `json:"gui_bridge_port" mapstructure:"gui_bridge_port"`
	BrowserBridge   int    `json:"browser_bridge_port" mapstructure:"browser_bridge_port"`
	UpdateChannel   string `json:"update_channel" mapstructure:"update_channel"`
	AutoDownload    bool   `json:"auto_download" mapstructure:"auto_download"`
	AutoInstall     bool   `json:"auto_install" mapstructure:"auto_install"`
	FailedRetrySecs int    `json:"failed_retry_timeout_seconds" mapstructure:"failed_retry_timeout_seconds"`
	CheckEveryBeats int    `json:"check_interval_heartbeats" mapstructure:"check_interval_heartbeats"`
}

func defaultSettings() Settings {
	return Settings{
		HTTPBindHost:    "127.0.0.1",
		HTTPPort:        3456,
		WebSocketPort:   3458,
		GUIBridgePort:   3460,
		BrowserBridge:   3457,
		UpdateChannel:   "stable",
		AutoDownload:    true,
		AutoInstall:     false,
		FailedRetrySecs: 600,
		CheckEveryBeats: 60,
	}
}

// Store owns the on-disk config directory.
type Store struct {
	dir string
}

// NewStore points a Store at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) connectionPath() string { return filepath.Join(s.dir, "connection.json") }
func (s *Store) settingsPath() string   { return filepath.Join(s.dir, "config.json") }

// LoadConnection reads connection.json, defaulting ConnectOnStartup=false
// and an empty ServerURL when absent.
func (s *Store) LoadConnection() (ConnectionConfig, error) {
	v := viper.New()
	v.SetConfigFile(s.connectionPath())
	v.SetConfigType("json")
	v.SetEnvPrefix("SCAGENT")
	v.AutomaticEnv()
	v.SetDefault("connect_on_startup", false)

	var cc ConnectionConfig
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return cc, nil
		}
		return cc, fmt.Errorf("read connection.json: %w", err)
	}
	if err := v.Unmarshal(&cc); err != nil {
		return cc, fmt.Errorf("decode connection.json: %w", err)
	}
	return cc, nil
}

// SaveConnection atomically rewrites connection.json.
func (s *Store) SaveConnection(cc ConnectionConfig) error {
	return writeAtomic(s.connectionPath(), cc)
}

// LoadSettings reads config.json layered over built-in defaults.
func (s *Store) LoadSettings() (Settings, error) {
	v := viper.New()
	v.SetConfigFile(s.settingsPath())
	v.SetConfigType("json")
	v.SetEnvPrefix("SCAGENT")
	v.AutomaticEnv()

	def := defaultSettings()
	v.SetDefault("http_bind_host", def.HTTPBindHost)
	v.SetDefault("http_port", def.HTTPPort)
	v.SetDefault("websocket_port", def.WebSocketPort)
	v.SetDefault("gui_bridge_port", def.GUIBridgePort)
	v.SetDefault("browser_bridge_port", def.BrowserBridge)
	v.SetDefault("update_channel", def.UpdateChannel)
	v.SetDefault("auto_download", def.AutoDownload)
	v.SetDefault("auto_install", def.AutoInstall)
	v.SetDefault("failed_retry_timeout_seconds", def.FailedRetrySecs)
	v.SetDefault("check_interval_heartbeats", def.CheckEveryBeats)

	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return def, fmt.Errorf("read config.json: %w", err)
	}

	var out Settings
	if err := v.Unmarshal(&out); err != nil {
		return def, fmt.Errorf("decode config.json: %w", err)
	}
	return out, nil
}

// SaveSettings atomically rewrites config.json.
func (s *Store) SaveSettings(st Settings) error {
	return writeAtomic(s.settingsPath(), st)
}

// MergeSettings applies a partial JSON object onto the persisted settings
// and rewrites config.json, used by the loopback POST /settings handler.
func (s *Store) MergeSettings(patch map[string]any) (Settings, error) {
	current, err := s.LoadSettings()
	if err != nil {
		return current, err
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return current, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return current, err
	}
	for k, v := range patch {
		m[k] = v
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return current, err
	}
	var out Settings
	if err := json.Unmarshal(merged, &out); err != nil {
		return current, err
	}
	if err := s.SaveSettings(out); err != nil {
		return current, err
	}
	return out, nil
}

func writeAtomic(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Watch starts an fsnotify watch on both config files and invokes onChange
// (with the changed file's base name) whenever either is written by an
// external process (e.g. the loopback server handling another instance, or
// an installer restoring a backup). The watcher runs until the caller
// invokes Close on the returned watcher.
func (s *Store) Watch(onChange func(file string)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				base := filepath.Base(ev.Name)
				if base == "connection.json" || base == "config.json" {
					onChange(base)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return w, nil
}
