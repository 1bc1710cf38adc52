package bindery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the App configuration, usually read from a TOML file:
//
//	name = "shop"
//	log_level = "debug"
//	views_dir = "views"
//	routes_file = "routes.yaml"
//	storage_path = "shop.db"
//	persist_fridge = true
//	snapshot_key = "change me"
//	scoped_render = true
//	phase_delay = "0s"
//	inline_scripts = "goja"
//	language = "fr"
//	locales_dir = "locales"
type Config struct {
	Name          string   `toml:"name"`
	Debug         bool     `toml:"debug"`
	LogLevel      string   `toml:"log_level"`
	ViewsDir      string   `toml:"views_dir"`
	RoutesFile    string   `toml:"routes_file"`
	StoragePath   string   `toml:"storage_path"`
	SnapshotKey   string   `toml:"snapshot_key"`
	PersistFridge bool     `toml:"persist_fridge"`
	SealSnapshots bool     `toml:"seal_snapshots"`
	ScopedRender  bool     `toml:"scoped_render"`
	PhaseDelay    Duration `toml:"phase_delay"`
	InlineScripts string   `toml:"inline_scripts"`
	Language      string   `toml:"language"`
	LocalesDir    string   `toml:"locales_dir"`
	// Outlet is the id of the element views load into. Empty means the
	// first element carrying b-view.
	Outlet       string `toml:"outlet"`
	AbortOnError bool   `toml:"abort_on_error"`
	StrictRoutes bool   `toml:"strict_routes"`
	// MaxRepeat caps b-repeat clones. Zero keeps the engine default.
	MaxRepeat int `toml:"max_repeat"`
}

// Duration is a time.Duration written as a string such as "16ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Name:     "bindery",
		LogLevel: "info",
		Language: "en",
	}
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, &ConfigurationError{Op: "load config", Err: err}
	}
	defer f.Close()
	return DecodeConfig(f)
}

// DecodeConfig reads TOML from r over DefaultConfig and validates it.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, &ConfigurationError{Op: "decode config", Err: err}
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return Config{}, &ConfigurationError{Op: "decode config", Err: fmt.Errorf("unknown keys %v", undec)}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be represented by the field types.
func (c Config) Validate() error {
	var errs []error
	switch c.InlineScripts {
	case "", "goja":
	default:
		errs = append(errs, fmt.Errorf("inline_scripts: unknown interpreter %q", c.InlineScripts))
	}
	if c.PhaseDelay.Duration < 0 {
		errs = append(errs, errors.New("phase_delay: negative"))
	}
	if c.MaxRepeat < 0 {
		errs = append(errs, errors.New("max_repeat: negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return &ConfigurationError{Op: "validate config", Err: err}
	}
	return nil
}
