package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds the fully resolved configuration for the server: which
// zones to load, where to listen, and how to negotiate EDNS.
type AppConfig struct {
	// Zones lists the zone files to load at startup and on reload.
	Zones []ZoneConfig `koanf:"zones" validate:"required,min=1,dive"`

	// Listen is the address (host:port, or :port) the UDP and TCP
	// listeners bind to.
	Listen string `koanf:"listen" validate:"required,listen_addr"`

	EDNS EDNSConfig `koanf:"edns" validate:"required"`

	// User and Group, if non-empty, are dropped to after binding
	// privileged sockets. Both empty disables privilege dropping.
	User  string `koanf:"user"`
	Group string `koanf:"group"`

	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
}

// ZoneConfig names one zone and the master file that defines it.
type ZoneConfig struct {
	Name string `koanf:"name" validate:"required"`
	File string `koanf:"file" validate:"required"`
}

// EDNSConfig controls the server's own EDNS(0) advertisement and the cap it
// applies to outgoing message sizes.
type EDNSConfig struct {
	// Advertise is the UDP payload size advertised in our own OPT record.
	// Fixed by policy at 1232; configurable only for testing against
	// non-default client behavior.
	Advertise uint16 `koanf:"advertise" validate:"required"`

	// MaxSend caps the size of any UDP reply we send, even if the client
	// advertised a larger payload.
	MaxSend uint16 `koanf:"max_send" validate:"required,gtefield=Advertise"`

	// Disable strips EDNS support entirely: no OPT is ever attached to a
	// reply and the UDP budget is always 512.
	Disable bool `koanf:"disable"`
}

// defaultAppConfig supplies every value not present in the config file or
// environment.
var defaultAppConfig = AppConfig{
	Listen: ":53",
	EDNS: EDNSConfig{
		Advertise: 1232,
		MaxSend:   1432,
		Disable:   false,
	},
	LogLevel: "info",
}

// validListenAddr validates a "host:port" or ":port" listen address.
func validListenAddr(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// defaultLoader loads defaultAppConfig via the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(defaultAppConfig, "koanf"), nil)
}

// fileLoader loads a YAML config file, when path is non-empty. A missing
// optional file is not an error: defaults and environment overrides may be
// sufficient on their own.
func fileLoader(k *koanf.Koanf, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return k.Load(file.Provider(path), yaml.Parser())
}

// envKeys maps the suffix of a recognized ADNSD_ environment variable (after
// the prefix is stripped) to its dotted koanf key. A plain "_" to "."
// replacement can't be used here since leaf keys such as log_level and
// max_send contain underscores that aren't nesting separators; unrecognized
// variables are ignored.
var envKeys = map[string]string{
	"LISTEN":         "listen",
	"LOG_LEVEL":      "log_level",
	"USER":           "user",
	"GROUP":          "group",
	"EDNS_ADVERTISE": "edns.advertise",
	"EDNS_MAX_SEND":  "edns.max_send",
	"EDNS_DISABLE":   "edns.disable",
}

// envLoader loads environment variables prefixed "ADNSD_" that match a known
// key in envKeys; anything else is left for the file and defaults layers.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "ADNSD_",
		TransformFunc: func(key, value string) (string, any) {
			suffix := strings.TrimPrefix(key, "ADNSD_")
			dotted, ok := envKeys[suffix]
			if !ok {
				return "", nil
			}
			return dotted, strings.TrimSpace(value)
		},
	}), nil)
}

// Load builds an AppConfig from defaults, an optional YAML file at path,
// and environment overrides (in that ascending order of precedence), then
// validates the result.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}
	if err := fileLoader(k, path); err != nil {
		return nil, fmt.Errorf("loading config file %s: %w", path, err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
