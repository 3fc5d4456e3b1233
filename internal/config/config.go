package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Configuration constants
const (
	// Server Configuration
	Port       = "PORT"
	Host       = "HOST"
	MaxClients = "MAX_CLIENTS"

	// TLS Configuration
	TLSEnabled  = "TLS_ENABLED"
	TLSCertFile = "TLS_CERT_FILE"
	TLSKeyFile  = "TLS_KEY_FILE"

	// WebSocket Configuration
	WSEnabled         = "WS_ENABLED"
	WSPort            = "WS_PORT"
	WSReadBufferSize  = "WS_READ_BUFFER_SIZE"
	WSWriteBufferSize = "WS_WRITE_BUFFER_SIZE"

	// Persistence Configuration
	PersistenceEnabled = "PERSISTENCE_ENABLED"
	DBDriver           = "DB_DRIVER"
	DBDSN              = "DB_DSN"

	// Audit Configuration
	AuditLogPath = "AUDIT_LOG_PATH"

	// Logging Configuration
	LogLevel  = "LOG_LEVEL"
	LogFormat = "LOG_FORMAT"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	TLS         TLSConfig
	WebSocket   WebSocketConfig
	Persistence PersistenceConfig
	Audit       AuditConfig
	Logging     LoggingConfig
}

// ServerConfig holds the TCP listener configuration
type ServerConfig struct {
	Port       string
	Host       string
	MaxClients int
}

// Addr returns the host:port the TCP listener binds to.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// TLSConfig holds the optional TLS listener configuration
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// WebSocketConfig holds the optional WebSocket transport configuration
type WebSocketConfig struct {
	Enabled         bool
	Port            string
	ReadBufferSize  int
	WriteBufferSize int
}

// PersistenceConfig holds the database configuration
type PersistenceConfig struct {
	Enabled bool
	Driver  string
	DSN     string
}

// AuditConfig holds the audit trail configuration
type AuditConfig struct {
	LogPath string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables and .envrc file
func LoadConfig() (*Config, error) {
	viper.SetConfigName(".envrc")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// The config file is optional; environment variables alone are enough.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:       viper.GetString(Port),
			Host:       viper.GetString(Host),
			MaxClients: viper.GetInt(MaxClients),
		},
		TLS: TLSConfig{
			Enabled:  viper.GetBool(TLSEnabled),
			CertFile: viper.GetString(TLSCertFile),
			KeyFile:  viper.GetString(TLSKeyFile),
		},
		WebSocket: WebSocketConfig{
			Enabled:         viper.GetBool(WSEnabled),
			Port:            viper.GetString(WSPort),
			ReadBufferSize:  viper.GetInt(WSReadBufferSize),
			WriteBufferSize: viper.GetInt(WSWriteBufferSize),
		},
		Persistence: PersistenceConfig{
			Enabled: viper.GetBool(PersistenceEnabled),
			Driver:  viper.GetString(DBDriver),
			DSN:     viper.GetString(DBDSN),
		},
		Audit: AuditConfig{
			LogPath: viper.GetString(AuditLogPath),
		},
		Logging: LoggingConfig{
			Level:  viper.GetString(LogLevel),
			Format: viper.GetString(LogFormat),
		},
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	// Server defaults
	viper.SetDefault(Port, "9999")
	viper.SetDefault(Host, "0.0.0.0")
	viper.SetDefault(MaxClients, 50)

	// TLS defaults
	viper.SetDefault(TLSEnabled, false)
	viper.SetDefault(TLSCertFile, "")
	viper.SetDefault(TLSKeyFile, "")

	// WebSocket defaults
	viper.SetDefault(WSEnabled, false)
	viper.SetDefault(WSPort, "9998")
	viper.SetDefault(WSReadBufferSize, 1024)
	viper.SetDefault(WSWriteBufferSize, 1024)

	// Persistence defaults
	viper.SetDefault(PersistenceEnabled, true)
	viper.SetDefault(DBDriver, "sqlite3")
	viper.SetDefault(DBDSN, "netauction.db")

	// Audit defaults
	viper.SetDefault(AuditLogPath, "logs/audit.log")

	// Logging defaults
	viper.SetDefault(LogLevel, "info")
	viper.SetDefault(LogFormat, "console")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Server.MaxClients <= 0 {
		return fmt.Errorf("max clients must be positive")
	}

	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("TLS requires both a certificate and a key file")
	}

	if c.WebSocket.Enabled {
		if c.WebSocket.Port == "" {
			return fmt.Errorf("websocket port is required when websocket is enabled")
		}
		if c.WebSocket.ReadBufferSize <= 0 || c.WebSocket.WriteBufferSize <= 0 {
			return fmt.Errorf("websocket buffer sizes must be positive")
		}
	}

	if c.Persistence.Enabled {
		if c.Persistence.Driver == "" {
			return fmt.Errorf("database driver is required when persistence is enabled")
		}
		if c.Persistence.DSN == "" {
			return fmt.Errorf("database DSN is required when persistence is enabled")
		}
	}

	return nil
}
