package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bgzfiltra/internal/bugzilla"
	"bgzfiltra/internal/questdb"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DefaultPaths are searched in order; the first regular file wins.
var DefaultPaths = []string{
	"./.bgzfiltra.toml",
	"./bgzfiltra.toml",
	"~/.bgzfiltra.toml",
	"~/.config/bgzfiltra.toml",
	"/etc/bgzfiltra.toml",
}

// ErrNoConfigFile is returned when none of the candidate paths exists.
var ErrNoConfigFile = errors.New("could not find settings file")

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Path     string
	Bugzilla bugzilla.Config
	Products []string
	CacheDir string
	QuestDB  questdb.Config
}

// Violation names a missing or invalid setting.
type Violation struct {
	Key     string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Key, v.Message)
}

// ValidationError carries every violation found in one pass.
type ValidationError struct {
	Path       string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, v.String())
	}
	return fmt.Sprintf("invalid settings in %s:\n%s", e.Path, strings.Join(lines, "\n"))
}

// NotFoundError lists the locations that were searched.
type NotFoundError struct {
	Paths []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v in any of these locations:\n%s", ErrNoConfigFile, strings.Join(e.Paths, "\n"))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNoConfigFile }

type fileConfig struct {
	Bugzilla struct {
		URL                  string   `toml:"url"`
		Username             string   `toml:"username"`
		Password             string   `toml:"password"`
		APIKey               string   `toml:"apikey"`
		SSLVerify            bool     `toml:"sslverify"`
		UseLegacyCredentials bool     `toml:"use_legacy_credentials"`
		AuthMode             string   `toml:"auth_mode"`
		Products             []string `toml:"products"`
		Timeout              string   `toml:"timeout"`
		CacheDir             string   `toml:"cache_dir"`
	} `toml:"bugzilla"`
	QuestDB struct {
		User     string    `toml:"user"`
		Password string    `toml:"password"`
		Host     string    `toml:"host"`
		Port     portValue `toml:"port"`
		Database string    `toml:"database"`
		Driver   string    `toml:"driver"`
		SSLMode  string    `toml:"sslmode"`
	} `toml:"questdb"`
}

// portValue accepts both port = 8812 and port = "8812".
type portValue string

func (p *portValue) UnmarshalTOML(v any) error {
	switch t := v.(type) {
	case string:
		*p = portValue(t)
	case int64:
		*p = portValue(strconv.FormatInt(t, 10))
	default:
		return fmt.Errorf("port must be a string or integer, got %T", v)
	}
	return nil
}

// envOverrides map environment variables onto settings keys.
var envOverrides = []struct {
	env string
	key string
	set func(fc *fileConfig, v string)
}{
	{"BGZ_BUGZILLA_URL", "bugzilla.url", func(fc *fileConfig, v string) { fc.Bugzilla.URL = v }},
	{"BGZ_BUGZILLA_USERNAME", "bugzilla.username", func(fc *fileConfig, v string) { fc.Bugzilla.Username = v }},
	{"BGZ_BUGZILLA_PASSWORD", "bugzilla.password", func(fc *fileConfig, v string) { fc.Bugzilla.Password = v }},
	{"BGZ_BUGZILLA_APIKEY", "bugzilla.apikey", func(fc *fileConfig, v string) { fc.Bugzilla.APIKey = v }},
	{"BGZ_QUESTDB_PASSWORD", "questdb.password", func(fc *fileConfig, v string) { fc.QuestDB.Password = v }},
}

// Load finds the settings file, applies .env and environment overrides, and
// validates the result. An explicit path is the only candidate when given.
func Load(explicit string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables")
	}

	candidates := DefaultPaths
	if explicit != "" {
		candidates = []string{explicit}
	}

	path, err := Find(candidates)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Msg("Loading settings")

	return LoadFile(path)
}

// Find returns the first candidate that is a regular file. Symlinks and
// directories are skipped.
func Find(candidates []string) (string, error) {
	for _, c := range candidates {
		path := expandHome(c)
		info, err := os.Lstat(path)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", &NotFoundError{Paths: candidates}
}

// LoadFile parses and validates a single settings file.
func LoadFile(path string) (*AppConfig, error) {
	var fc fileConfig
	fc.Bugzilla.SSLVerify = true

	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return nil, &ValidationError{Path: path, Violations: []Violation{{Key: "(file)", Message: err.Error()}}}
	}

	present := make(map[string]bool)
	for _, key := range md.Keys() {
		present[key.String()] = true
	}
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			o.set(&fc, v)
			present[o.key] = true
		}
	}

	cfg, violations := build(fc, present)
	if len(violations) > 0 {
		return nil, &ValidationError{Path: path, Violations: violations}
	}
	cfg.Path = path
	return cfg, nil
}

var requiredKeys = []struct {
	key     string
	example string
}{
	{"bugzilla.url", `url = "https://bugzilla.example.com"`},
	{"bugzilla.username", `username = "foo@bar.de"`},
	{"bugzilla.password", `password = "mypassword"`},
	{"questdb.user", `user = "admin"`},
	{"questdb.password", `password = "mypassword"`},
	{"questdb.host", `host = "127.0.0.1"`},
	{"questdb.port", `port = "8812"`},
	{"questdb.database", `database = "qdb"`},
}

// build validates the decoded file and converts it into an AppConfig.
func build(fc fileConfig, present map[string]bool) (*AppConfig, []Violation) {
	var violations []Violation

	for _, section := range []string{"bugzilla", "questdb"} {
		if !present[section] {
			violations = append(violations, Violation{Key: section, Message: fmt.Sprintf("[%s] section missing in settings file", section)})
		}
	}
	for _, r := range requiredKeys {
		if !present[r.key] {
			violations = append(violations, Violation{Key: r.key, Message: "definition missing: " + r.example})
		}
	}
	if len(fc.Bugzilla.Products) == 0 {
		violations = append(violations, Violation{Key: "bugzilla.products", Message: `at least one product required: products = ["Foo"]`})
	}

	var mode bugzilla.AuthMode
	if fc.Bugzilla.AuthMode != "" {
		m, err := bugzilla.ParseAuthMode(fc.Bugzilla.AuthMode)
		if err != nil {
			violations = append(violations, Violation{Key: "bugzilla.auth_mode", Message: err.Error()})
		}
		mode = m
	} else if present["bugzilla.apikey"] {
		mode = bugzilla.AuthAPIKeyWithFallback
	} else {
		mode = bugzilla.AuthBasic
	}
	if mode == bugzilla.AuthAPIKeyWithFallback && !present["bugzilla.apikey"] {
		violations = append(violations, Violation{Key: "bugzilla.apikey", Message: `definition missing for api-key-with-fallback: apikey = "..."`})
	}

	var timeout time.Duration
	if fc.Bugzilla.Timeout != "" {
		d, err := time.ParseDuration(fc.Bugzilla.Timeout)
		if err != nil || d < 0 {
			violations = append(violations, Violation{Key: "bugzilla.timeout", Message: fmt.Sprintf("invalid duration %q", fc.Bugzilla.Timeout)})
		}
		timeout = d
	}

	driver := fc.QuestDB.Driver
	if driver == "" {
		driver = "postgres"
	}
	known := false
	for _, d := range questdb.Drivers {
		if d == driver {
			known = true
		}
	}
	if !known {
		violations = append(violations, Violation{Key: "questdb.driver", Message: fmt.Sprintf("unknown driver %q (want one of %s)", driver, strings.Join(questdb.Drivers, ", "))})
	}

	if len(violations) > 0 {
		return nil, violations
	}

	cacheDir := fc.Bugzilla.CacheDir
	if cacheDir == "" {
		cacheDir = "."
	}

	return &AppConfig{
		Bugzilla: bugzilla.Config{
			BaseURL:              fc.Bugzilla.URL,
			Username:             fc.Bugzilla.Username,
			Password:             fc.Bugzilla.Password,
			APIKey:               fc.Bugzilla.APIKey,
			AuthMode:             mode,
			UseLegacyCredentials: fc.Bugzilla.UseLegacyCredentials,
			SSLVerify:            fc.Bugzilla.SSLVerify,
			Timeout:              timeout,
		},
		Products: fc.Bugzilla.Products,
		CacheDir: expandHome(cacheDir),
		QuestDB: questdb.Config{
			User:     fc.QuestDB.User,
			Password: fc.QuestDB.Password,
			Host:     fc.QuestDB.Host,
			Port:     string(fc.QuestDB.Port),
			Database: fc.QuestDB.Database,
			Driver:   driver,
			SSLMode:  fc.QuestDB.SSLMode,
		},
	}, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
