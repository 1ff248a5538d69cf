package config

import "time"

// MessageStoreConfig selects the message persistence backend.
type MessageStoreConfig struct {
	// Driver is "sqlite" or "mongo".
	Driver        string `mapstructure:"driver" yaml:"driver"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
}

// GatewayConfig selects the live delivery backend.
type GatewayConfig struct {
	// Kind is "hub" (in-process websocket fanout) or "kafka".
	Kind         string   `mapstructure:"kind" yaml:"kind"`
	KafkaBrokers []string `mapstructure:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic" yaml:"kafka_topic"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// PublishTimeout bounds each live delivery attempt.
	PublishTimeout time.Duration `mapstructure:"publish_timeout" yaml:"publish_timeout"`
	// StrictMembership requires subscribers to be participants of the
	// conversation encoded in the channel name.
	StrictMembership bool `mapstructure:"strict_membership" yaml:"strict_membership"`

	MessageStore MessageStoreConfig `mapstructure:"message_store" yaml:"message_store"`
	Gateway      GatewayConfig      `mapstructure:"gateway" yaml:"gateway"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "deskchat.db",
		JWTSecret:         "",
		JWTIssuer:         "deskchat",
		JWTAudience:       "deskchat",
		PublishTimeout:    3 * time.Second,
		StrictMembership:  true,
		MessageStore: MessageStoreConfig{
			Driver:        "sqlite",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "deskchat",
		},
		Gateway: GatewayConfig{
			Kind:       "hub",
			KafkaTopic: "chat-events",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}
