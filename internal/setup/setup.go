// Package setup registers the lite MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerKey names the server entry in the client configuration.
const ServerKey = "neurofusion"

// DataDirEnv is passed to the registered server to select its data directory.
const DataDirEnv = "NEUROFUSION_DATA_DIR"

const binaryName = "mcp-server-lite"

// ServerEntry is one entry under "mcpServers" in a client configuration.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls registration.
type Options struct {
	BinaryPath string // defaults to the first mcp-server-lite found
	DataDir    string // exported as NEUROFUSION_DATA_DIR when set
}

// Status describes the registration found in a client configuration.
type Status struct {
	ConfigPath string   `json:"config_path"`
	Registered bool     `json:"registered"`
	Command    string   `json:"command,omitempty"`
	DataDir    string   `json:"data_dir,omitempty"`
	Issues     []string `json:"issues,omitempty"`
}

// DesktopConfigPath returns the desktop client's configuration file for
// the current platform.
func DesktopConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// clientConfig keeps every top-level key of the file so registration never
// drops settings it does not own.
type clientConfig struct {
	servers map[string]ServerEntry
	other   map[string]json.RawMessage
}

func load(path string) (*clientConfig, error) {
	cfg := &clientConfig{
		servers: make(map[string]ServerEntry),
		other:   make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.servers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.other, "mcpServers")
	}
	return cfg, nil
}

func (c *clientConfig) save(path string) error {
	servers, err := json.Marshal(c.servers)
	if err != nil {
		return fmt.Errorf("failed to marshal servers: %w", err)
	}
	doc := make(map[string]json.RawMessage, len(c.other)+1)
	for k, v := range c.other {
		doc[k] = v
	}
	doc["mcpServers"] = servers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry in the client configuration at
// path and returns the entry written.
func Register(path string, opts Options) (*ServerEntry, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = findBinary(); err != nil {
			return nil, fmt.Errorf("could not find server binary: %w", err)
		}
	}
	if abs, err := filepath.Abs(binary); err == nil {
		binary = abs
	}

	entry := ServerEntry{Command: binary}
	if opts.DataDir != "" {
		entry.Env = map[string]string{DataDirEnv: opts.DataDir}
	}
	cfg.servers[ServerKey] = entry

	if err := cfg.save(path); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Unregister removes the server entry. It reports whether one existed.
func Unregister(path string) (bool, error) {
	cfg, err := load(path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.servers[ServerKey]; !ok {
		return false, nil
	}
	delete(cfg.servers, ServerKey)
	return true, cfg.save(path)
}

// Check inspects the registration at path. defaultDataDir is reported when
// the entry does not override the data directory.
func Check(path, defaultDataDir string) (*Status, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	status := &Status{ConfigPath: path, DataDir: defaultDataDir}
	entry, ok := cfg.servers[ServerKey]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered with the client")
		return status, nil
	}

	status.Registered = true
	status.Command = entry.Command
	if dir := entry.Env[DataDirEnv]; dir != "" {
		status.DataDir = dir
	}

	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case runtime.GOOS != "windows" && info.Mode()&0o111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	if _, err := os.Stat(status.DataDir); errors.Is(err, os.ErrNotExist) {
		status.Issues = append(status.Issues, fmt.Sprintf("data directory will be created on first run: %s", status.DataDir))
	}
	return status, nil
}

// findBinary looks next to the running executable, then on PATH, then in
// the usual install locations.
func findBinary() (string, error) {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), binaryName))
	}
	if path, err := exec.LookPath(binaryName); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, filepath.Join("build", binaryName))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", binaryName))
	}
	candidates = append(candidates, filepath.Join("/usr/local/bin", binaryName))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("binary %q not found", binaryName)
}
