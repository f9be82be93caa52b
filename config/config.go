// Package config provides configuration of the neo-did application.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nspcc-dev/neo-did/did"
	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultLogLevel     = "info"
	DefaultKeystoreName = "keystore.json"
)

// Scrypt groups NEP-2 scrypt parameters.
type Scrypt struct {
	N int `yaml:"N"`
	R int `yaml:"R"`
	P int `yaml:"P"`
}

// Config is a configuration of the application.
type Config struct {
	// Wallet root directory.
	Root string `yaml:"Root"`
	// Keystore file, defaults to DefaultKeystoreName inside Root.
	Keystore string `yaml:"Keystore"`
	// Log level name, defaults to DefaultLogLevel.
	LogLevel string `yaml:"LogLevel"`
	// Attribute cache database, defaults to LevelDB in did.CacheDirName
	// inside Root.
	DB dbconfig.DBConfiguration `yaml:"DB"`
	// Scrypt parameters of the new keystores, default to NEP-2 standard ones.
	Scrypt Scrypt `yaml:"Scrypt"`
	// Attributes of the new identifiers.
	InitialAttributes map[string]any `yaml:"InitialAttributes"`
}

// Default returns configuration with the given root and default values.
func Default(root string) Config {
	var c Config
	c.Root = root
	c.applyDefaults()
	return c
}

// Load reads configuration from the YAML file. Missing values are set to
// defaults, relative paths are resolved against the file directory.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var c Config

	err = yaml.Unmarshal(b, &c)
	if err != nil {
		return Config{}, fmt.Errorf("decode config from YAML: %w", err)
	}

	dir := filepath.Dir(path)
	if c.Root == "" {
		c.Root = dir
	}

	c.Root = resolvePath(dir, c.Root)
	c.Keystore = resolvePath(dir, c.Keystore)
	c.DB.LevelDBOptions.DataDirectoryPath = resolvePath(dir, c.DB.LevelDBOptions.DataDirectoryPath)
	c.DB.BoltDBOptions.FilePath = resolvePath(dir, c.DB.BoltDBOptions.FilePath)

	c.applyDefaults()

	err = c.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return c, nil
}

// resolvePath joins relative non-empty path with dir.
func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (c *Config) applyDefaults() {
	if c.Keystore == "" {
		c.Keystore = filepath.Join(c.Root, DefaultKeystoreName)
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.DB.Type == "" {
		c.DB.Type = dbconfig.LevelDB
		c.DB.LevelDBOptions.DataDirectoryPath = filepath.Join(c.Root, did.CacheDirName)
	}

	if c.Scrypt == (Scrypt{}) {
		p := keys.NEP2ScryptParams()
		c.Scrypt = Scrypt{N: p.N, R: p.R, P: p.P}
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Root == "" {
		return errors.New("missing root directory")
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.DB.Type {
	case dbconfig.LevelDB:
		if c.DB.LevelDBOptions.DataDirectoryPath == "" {
			return errors.New("missing LevelDB directory")
		}
	case dbconfig.BoltDB:
		if c.DB.BoltDBOptions.FilePath == "" {
			return errors.New("missing BoltDB file")
		}
	case dbconfig.InMemoryDB:
	default:
		return fmt.Errorf("unsupported DB type '%s'", c.DB.Type)
	}

	if c.Scrypt.N <= 1 || c.Scrypt.N&(c.Scrypt.N-1) != 0 {
		return fmt.Errorf("scrypt N must be a power of 2 greater than 1, got %d", c.Scrypt.N)
	}

	if c.Scrypt.R <= 0 || c.Scrypt.P <= 0 {
		return fmt.Errorf("scrypt R and P must be positive, got %d and %d", c.Scrypt.R, c.Scrypt.P)
	}

	if _, err := c.Attributes(); err != nil {
		return err
	}

	return nil
}

// ScryptParams returns scrypt parameters for the keystore.
func (c Config) ScryptParams() keys.ScryptParams {
	return keys.ScryptParams{N: c.Scrypt.N, R: c.Scrypt.R, P: c.Scrypt.P}
}

// Attributes returns InitialAttributes encoded into JSON.
func (c Config) Attributes() (map[string]json.RawMessage, error) {
	if len(c.InitialAttributes) == 0 {
		return nil, nil
	}

	res := make(map[string]json.RawMessage, len(c.InitialAttributes))

	for k, v := range c.InitialAttributes {
		if k == "" {
			return nil, errors.New("empty initial attribute path")
		}

		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode initial attribute '%s' into JSON: %w", k, err)
		}

		res[k] = b
	}

	return res, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid log level '%s': %w", s, err)
	}
	return lvl, nil
}

// Logger constructs logger writing messages of the configured level to the
// standard error.
func (c Config) Logger() (*zap.Logger, error) {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return l, nil
}
