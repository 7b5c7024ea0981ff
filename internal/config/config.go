package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort              = 5000
	DefaultHost              = "127.0.0.1"
	DefaultLogLevel          = "info"
	DefaultTemplateDirectory = "sample_forms"
	DefaultOutputDirectory   = "out"
	DefaultMaxPayloadSize    = 64 * 1024 // 64KB, a PDF417 payload is far smaller
	DefaultMaxConnections    = 64

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "DEALERLITE"
)

// AuthConfig enables HTTP basic auth when a user and a password or bcrypt
// hash are set
type AuthConfig struct {
	User         string
	Password     string
	PasswordHash string
}

// Config holds all configuration for the paperwork server
type Config struct {
	// Server configuration
	Mode           string `validate:"oneof=stdio server"`
	Host           string `validate:"required"`
	Port           int
	MaxConnections int `validate:"gte=0"`
	Auth           AuthConfig

	// Paperwork configuration
	TemplateDirectory string `validate:"required"`
	OutputDirectory   string `validate:"required"`
	MaxPayloadSize    int64  `validate:"gt=0"`

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string `validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:              ModeStdio, // Default to stdio mode for MCP compatibility
		Host:              DefaultHost,
		Port:              DefaultPort,
		MaxConnections:    DefaultMaxConnections,
		TemplateDirectory: DefaultTemplateDirectory,
		OutputDirectory:   DefaultOutputDirectory,
		MaxPayloadSize:    DefaultMaxPayloadSize,
		Version:           "1.0.0",
		ServerName:        "dealerlite",
		LogLevel:          DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	for _, dir := range []*string{&cfg.TemplateDirectory, &cfg.OutputDirectory} {
		if *dir == "" {
			continue
		}
		if expanded, err := filepath.Abs(*dir); err == nil {
			*dir = expanded
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// DEALERLITE_AUTH_USER maps to auth.user
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("templates", cfg.TemplateDirectory)
	viper.SetDefault("output", cfg.OutputDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxpayload", cfg.MaxPayloadSize)
	viper.SetDefault("maxconns", cfg.MaxConnections)
	viper.SetDefault("auth.user", cfg.Auth.User)
	viper.SetDefault("auth.pass", cfg.Auth.Password)
	viper.SetDefault("auth.passhash", cfg.Auth.PasswordHash)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("templates", cfg.TemplateDirectory, "Directory holding the blank form templates")
	pflag.String("output", cfg.OutputDirectory, "Directory receiving filled documents")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxpayload", cfg.MaxPayloadSize, "Maximum license payload size in bytes")
	pflag.Int("maxconns", cfg.MaxConnections, "Maximum concurrent HTTP connections, 0 for no limit (server mode only)")
	pflag.String("auth-user", cfg.Auth.User, "Basic auth user name (server mode only)")
	pflag.String("auth-pass", cfg.Auth.Password, "Basic auth password (server mode only)")
	pflag.String("auth-passhash", cfg.Auth.PasswordHash, "Basic auth bcrypt password hash (server mode only)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("templates", pflag.Lookup("templates"))
	_ = viper.BindPFlag("output", pflag.Lookup("output"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("maxpayload", pflag.Lookup("maxpayload"))
	_ = viper.BindPFlag("maxconns", pflag.Lookup("maxconns"))
	_ = viper.BindPFlag("auth.user", pflag.Lookup("auth-user"))
	_ = viper.BindPFlag("auth.pass", pflag.Lookup("auth-pass"))
	_ = viper.BindPFlag("auth.passhash", pflag.Lookup("auth-passhash"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nDealerLite - fills test-drive waivers and bills of sale from a scanned driver's license\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          "+
			"# stdio mode, ./sample_forms and ./out (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --port=5000                "+
			"# HTTP scan form and MCP endpoint\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --auth-user=desk --auth-pass=secret # with basic auth\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_MODE           Server mode\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_HOST           Server host\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_PORT           Server port\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_TEMPLATES      Template directory\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_OUTPUT         Output directory\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_LOGLEVEL       Log level\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_MAXPAYLOAD     Maximum payload size\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_MAXCONNS       Maximum HTTP connections\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_AUTH_USER      Basic auth user\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_AUTH_PASS      Basic auth password\n")
		fmt.Fprintf(os.Stderr, "  DEALERLITE_AUTH_PASSHASH  Basic auth bcrypt hash\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.TemplateDirectory = viper.GetString("templates")
	cfg.OutputDirectory = viper.GetString("output")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxPayloadSize = viper.GetInt64("maxpayload")
	cfg.MaxConnections = viper.GetInt("maxconns")
	cfg.Auth.User = viper.GetString("auth.user")
	cfg.Auth.Password = viper.GetString("auth.pass")
	cfg.Auth.PasswordHash = viper.GetString("auth.passhash")
}

// Validate checks if the configuration is valid and creates missing directories
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describeValidationError(err)
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if err := c.Auth.validate(); err != nil {
		return err
	}

	for _, dir := range []struct{ name, path string }{
		{"template", c.TemplateDirectory},
		{"output", c.OutputDirectory},
	} {
		if _, err := os.Stat(dir.path); os.IsNotExist(err) {
			if err := os.MkdirAll(dir.path, DefaultDirPerm); err != nil {
				return fmt.Errorf("cannot create %s directory %s: %w", dir.name, dir.path, err)
			}
		} else if err != nil {
			return fmt.Errorf("cannot access %s directory %s: %w", dir.name, dir.path, err)
		}
	}

	return nil
}

// describeValidationError turns the first failed struct tag into a readable message
func describeValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Mode":
		return errors.New("mode must be either 'stdio' or 'server'")
	case "LogLevel":
		return fmt.Errorf("invalid log level: %v (must be one of: debug, info, warn, error)", fe.Value())
	case "Host":
		return errors.New("host cannot be empty")
	case "TemplateDirectory":
		return errors.New("template directory cannot be empty")
	case "OutputDirectory":
		return errors.New("output directory cannot be empty")
	case "MaxPayloadSize":
		return errors.New("maximum payload size must be positive")
	case "MaxConnections":
		return errors.New("maximum connections cannot be negative")
	}
	return fmt.Errorf("invalid %s: failed %q check", fe.Field(), fe.Tag())
}

func (a AuthConfig) validate() error {
	if a.User == "" {
		if a.Password != "" || a.PasswordHash != "" {
			return errors.New("auth password set without auth user")
		}
		return nil
	}
	if a.Password == "" && a.PasswordHash == "" {
		return errors.New("auth user set without a password or password hash")
	}
	if a.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(a.PasswordHash)); err != nil {
			return fmt.Errorf("auth password hash is not a bcrypt hash: %w", err)
		}
	}
	return nil
}

// AuthEnabled reports whether HTTP basic auth is configured
func (c *Config) AuthEnabled() bool {
	return c.Auth.User != "" && (c.Auth.Password != "" || c.Auth.PasswordHash != "")
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. Secrets are
// never included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, TemplateDirectory: %s, OutputDirectory: %s, "+
		"LogLevel: %s, MaxPayloadSize: %d, MaxConnections: %d, Auth: %t}",
		c.Mode, c.Host, c.Port, c.TemplateDirectory, c.OutputDirectory,
		c.LogLevel, c.MaxPayloadSize, c.MaxConnections, c.AuthEnabled())
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
