package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Every unparsable variable is reported, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := fromEnv(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set in the environment.
// Files that do not exist are skipped. Returns the files that were loaded.
func LoadDotEnv(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var loaded []string
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return loaded, fmt.Errorf("load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// envField is one struct field bound to an environment variable.
type envField struct {
	names    []string // primary name first, then envAlt
	fallback string
	required bool
	dst      reflect.Value
}

// lookup returns the first non-empty variable among the field's names.
func (f envField) lookup() (string, bool) {
	for _, name := range f.names {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// envFields walks v and its nested structs, returning every field with an
// env tag.
func envFields(v reflect.Value) []envField {
	var fields []envField
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			fields = append(fields, envFields(fv)...)
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		f := envField{
			names:    []string{name},
			fallback: sf.Tag.Get("default"),
			required: sf.Tag.Get("required") == "true",
			dst:      fv,
		}
		if alt := sf.Tag.Get("envAlt"); alt != "" {
			f.names = append(f.names, alt)
		}
		fields = append(fields, f)
	}
	return fields
}

// fromEnv populates cfg from the environment, joining all field errors.
func fromEnv(cfg *Config) error {
	var errs []error
	for _, f := range envFields(reflect.ValueOf(cfg).Elem()) {
		raw, ok := f.lookup()
		if !ok {
			if f.required {
				errs = append(errs, fmt.Errorf("required environment variable %s is not set", f.names[0]))
				continue
			}
			raw = f.fallback
		}
		if raw == "" {
			continue
		}
		if err := parseInto(f.dst, raw); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", f.names[0], raw, err))
		}
	}
	return errors.Join(errs...)
}

// parseInto parses raw into dst according to dst's type.
func parseInto(dst reflect.Value, raw string) error {
	switch p := dst.Addr().Interface().(type) {
	case *string:
		*p = raw
	case *time.Duration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		*p = d
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		*p = n
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		*p = b
	case *[]string:
		var items []string
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		*p = items
	default:
		return fmt.Errorf("unsupported field type %s", dst.Type())
	}
	return nil
}

// problems accumulates validation failures.
type problems []string

func (p *problems) addIf(failed bool, format string, args ...any) {
	if failed {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var p problems

	p.addIf(strings.TrimSpace(c.Source.Path) == "", "PUBSUM_SOURCE_PATH must not be empty")
	p.addIf(c.Source.OutputDir == "", "PUBSUM_OUTPUT_DIR must not be empty")

	p.addIf(c.Server.Port <= 0 || c.Server.Port > 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.addIf(c.Server.ReadTimeout < 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.addIf(c.Server.WriteTimeout < 0, "SERVER_WRITE_TIMEOUT must be non-negative")
	p.addIf(c.Server.ShutdownTimeout <= 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	p.addIf(c.Server.RequestTimeout <= 0, "SERVER_REQUEST_TIMEOUT must be positive")

	// Pool settings only matter once the archive is enabled
	if db := c.Database; db.ArchiveEnabled() {
		p.addIf(db.MaxConns <= 0, "DB_MAX_CONNS must be positive")
		p.addIf(db.MinConns < 0, "DB_MIN_CONNS must be non-negative")
		p.addIf(db.MaxConns < db.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
		p.addIf(db.ArchiveTimeout <= 0, "ARCHIVE_TIMEOUT must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addIf(true, "LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.addIf(true, "LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

// String returns a representation of the config safe for logs: the
// database URL is never printed.
func (c *Config) String() string {
	dbURL := "[NONE]"
	if c.Database.ArchiveEnabled() {
		dbURL = "[MASKED]"
	}

	return fmt.Sprintf(
		"Config{Source: {Path: %q, Type: %q, Sheet: %q, OutputDir: %q}, "+
			"Server: {Addr: %q}, Database: {URL: %s, MaxConns: %d}, "+
			"Logging: {Level: %q, Format: %q}}",
		c.Source.Path, c.Source.Type, c.Source.Sheet, c.Source.OutputDir,
		c.Server.Addr(), dbURL, c.Database.MaxConns,
		c.Logging.Level, c.Logging.Format,
	)
}
