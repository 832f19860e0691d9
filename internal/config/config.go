// Package config loads the gateway configuration from a YAML file with
// environment-variable overrides, and watches the file for changes.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Assets  AssetsConfig  `koanf:"assets"`
	Auth    AuthConfig    `koanf:"auth"`
	Routes  []RouteConfig `koanf:"routes"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	IP   string `koanf:"ip"`
	// Path is the optional global prefix under which every route is
	// mounted. Defaults to "/".
	Path  string      `koanf:"path"`
	HTTPS HTTPSConfig `koanf:"https"`
}

// HTTPSConfig enables TLS when both fields are set.
type HTTPSConfig struct {
	Cert string `koanf:"cert"`
	Key  string `koanf:"key"`
}

type StorageConfig struct {
	// Path is the SQLite database file for the request log.
	// Empty disables the log.
	Path string `koanf:"path"`
}

type AssetsConfig struct {
	// Folder is served for paths no route claims. Empty means
	// unmatched paths get a 404.
	Folder string `koanf:"folder"`
}

type AuthConfig struct {
	// Action is the authorization action invoked for routes that
	// require it.
	Action string `koanf:"action"`
}

// RouteConfig is one entry of the ordered route table. Order matters:
// dispatch is first-match by declaration order, so more specific routes
// must be declared before broader ones.
type RouteConfig struct {
	Path          string            `koanf:"path"`
	Authorization bool              `koanf:"authorization"`
	Whitelist     []string          `koanf:"whitelist"`
	Aliases       map[string]string `koanf:"aliases"`
	BodyParsers   []string          `koanf:"bodyParsers"`
}

// Load reads the config file at path (missing file is fine, env-only
// setups are supported) and applies GW_-prefixed environment overrides,
// e.g. GW_SERVER__PORT=9000.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("GW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "GW_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.path") {
		k.Set("server.path", "/")
	}
	if !k.Exists("auth.action") {
		k.Set("auth.action", "auth.resolveUser")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Path-like fields may reference environment variables, e.g.
	// cert: ${TLS_CERT_FILE}.
	cfg.Server.HTTPS.Cert = os.ExpandEnv(cfg.Server.HTTPS.Cert)
	cfg.Server.HTTPS.Key = os.ExpandEnv(cfg.Server.HTTPS.Key)
	cfg.Storage.Path = os.ExpandEnv(cfg.Storage.Path)
	cfg.Assets.Folder = os.ExpandEnv(cfg.Assets.Folder)

	// A gateway with no routes still dispatches: everything under the
	// global prefix maps through a single catch-all route.
	if len(cfg.Routes) == 0 {
		cfg.Routes = []RouteConfig{{Path: "/"}}
	}

	return &cfg, nil
}
