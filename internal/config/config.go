// Package config loads qcore settings from an optional CUE file.
//
// The file is unified against a closed schema, so unknown fields and
// ill-typed values are rejected, and every field has a default:
//
//	engine: {
//		path:         "quanto-core"
//		args:         []
//		merge_stderr: false
//		grace_period: "5s"
//		handshake:    true
//	}
//	journal: path: ""
//	log: {level: "info", file: ""}
//
// QCORE_ENGINE, when set, replaces engine.path. Command-line flags are
// applied on top by the caller.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/qcore/internal/process"
)

//go:embed schema.cue
var schemaSrc string

// EnvEngine overrides the engine executable.
const EnvEngine = "QCORE_ENGINE"

// Config is the decoded configuration.
type Config struct {
	Engine  Engine  `json:"engine"`
	Journal Journal `json:"journal"`
	Log     Log     `json:"log"`
}

// Engine selects and launches the reasoning engine.
type Engine struct {
	Path        string   `json:"path"`
	Args        []string `json:"args"`
	MergeStderr bool     `json:"merge_stderr"`
	GracePeriod string   `json:"grace_period"`
	Handshake   bool     `json:"handshake"`
}

// Journal configures the exchange journal.
type Journal struct {
	Path string `json:"path"`
}

// Log configures logging.
type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Parse(nil, "default")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads path, or only the defaults when path is empty, then applies
// the environment.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// Parse unifies CUE source with the schema and decodes the result. An
// empty source yields the defaults.
func Parse(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def
	if len(data) > 0 {
		user := ctx.CompileBytes(data, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filename, err)
		}
		value = def.Unify(user)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", filename, err)
	}
	if _, err := cfg.Grace(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return &cfg, nil
}

// ApplyEnv applies environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if p := getenv(EnvEngine); p != "" {
		c.Engine.Path = p
	}
}

// Grace returns the engine shutdown grace period.
func (c *Config) Grace() (time.Duration, error) {
	d, err := time.ParseDuration(c.Engine.GracePeriod)
	if err != nil {
		return 0, fmt.Errorf("engine.grace_period: %w", err)
	}
	return d, nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Process returns launch options for the engine.
func (c *Config) Process(logger *slog.Logger) process.Options {
	return process.Options{
		Path:        c.Engine.Path,
		Args:        append([]string(nil), c.Engine.Args...),
		MergeStderr: c.Engine.MergeStderr,
		Logger:      logger,
	}
}
