package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig             `mapstructure:"server"`
	Database   DatabaseConfig           `mapstructure:"database"`
	Redis      RedisConfig              `mapstructure:"redis"`
	JWT        JWTConfig                `mapstructure:"jwt"`
	Log        LogConfig                `mapstructure:"log"`
	Transfer   TransferConfig           `mapstructure:"transfer"`
	Withdrawal WithdrawalConfig         `mapstructure:"withdrawal"`
	Channels   map[string]ChannelConfig `mapstructure:"channels"`
	Notify     NotifyConfig             `mapstructure:"notify"`
	Identity   IdentityConfig           `mapstructure:"identity"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig configures bearer tokens issued to cash-out agents.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// TransferConfig holds platform-wide transfer rules. Monetary bounds are
// decimal strings, parsed into exact values at startup.
type TransferConfig struct {
	Currency     string            `mapstructure:"currency"`
	MinAmount    string            `mapstructure:"min_amount"`
	MaxAmount    string            `mapstructure:"max_amount"`
	PhonePattern string            `mapstructure:"phone_pattern"`
	NumSeed      int64             `mapstructure:"num_seed"`      // first numeric transaction id
	CodeAttempts int               `mapstructure:"code_attempts"` // retries before timestamp fallback
	Rates        map[string]string `mapstructure:"rates"`         // "XOF/EUR" -> decimal rate
	RateMargin   string            `mapstructure:"rate_margin"`   // business margin percentage on conversion
}

// WithdrawalConfig holds cash-out rules, including the agent commission schedule.
type WithdrawalConfig struct {
	Commission FeeConfig `mapstructure:"commission"`
}

// FeeConfig is a fee schedule in decimal strings:
// fee = clamp(amount * percentage/100 + fixed, min, max).
type FeeConfig struct {
	Percentage string `mapstructure:"percentage"`
	Fixed      string `mapstructure:"fixed"`
	Min        string `mapstructure:"min"`
	Max        string `mapstructure:"max"`
}

// ChannelConfig describes one simulated mobile-money operator.
type ChannelConfig struct {
	Name           string        `mapstructure:"name"`
	Active         bool          `mapstructure:"active"`
	SuccessRate    float64       `mapstructure:"success_rate"`    // P(success), in [0,1]
	DeclineCeiling float64       `mapstructure:"decline_ceiling"` // above success rate, below this -> business decline; above -> timeout
	MinLatency     time.Duration `mapstructure:"min_latency"`
	MaxLatency     time.Duration `mapstructure:"max_latency"`
	MinAmount      string        `mapstructure:"min_amount"`
	MaxAmount      string        `mapstructure:"max_amount"`
	PhonePattern   string        `mapstructure:"phone_pattern"`
	RefPrefix      string        `mapstructure:"ref_prefix"`
	Fees           FeeConfig     `mapstructure:"fees"`
}

// NotifyConfig configures the outbound webhook notification sink.
type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"` // empty = notifications disabled
	Timeout    time.Duration `mapstructure:"timeout"`
}

// IdentityConfig configures the external identity-lookup collaborator.
type IdentityConfig struct {
	BaseURL string        `mapstructure:"base_url"` // empty = all recipients unknown
	Timeout time.Duration `mapstructure:"timeout"`
}

const senegalPhonePattern = `^(\+221|221)?(77|78|70|76|75)\d{7}$`

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: MMT (Mobile Money Transfer).
// Nested keys use underscore: MMT_DATABASE_HOST, MMT_TRANSFER_MAX_AMOUNT, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "money_transfer")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "mobile-money-core")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("transfer.currency", "XOF")
	v.SetDefault("transfer.min_amount", "100")
	v.SetDefault("transfer.max_amount", "500000")
	v.SetDefault("transfer.phone_pattern", senegalPhonePattern)
	v.SetDefault("transfer.num_seed", 100000001)
	v.SetDefault("transfer.code_attempts", 10)
	v.SetDefault("transfer.rates", map[string]string{})
	v.SetDefault("transfer.rate_margin", "2.0")

	v.SetDefault("withdrawal.commission.percentage", "1.0")
	v.SetDefault("withdrawal.commission.fixed", "0")
	v.SetDefault("withdrawal.commission.min", "0")
	v.SetDefault("withdrawal.commission.max", "5000")

	// Simulated operators. Wave is faster and cheaper with a higher success
	// rate than Orange Money; both accept any Senegalese number.
	v.SetDefault("channels.wave.name", "Wave")
	v.SetDefault("channels.wave.active", true)
	v.SetDefault("channels.wave.success_rate", 0.85)
	v.SetDefault("channels.wave.decline_ceiling", 0.95)
	v.SetDefault("channels.wave.min_latency", "1500ms")
	v.SetDefault("channels.wave.max_latency", "4s")
	v.SetDefault("channels.wave.min_amount", "100")
	v.SetDefault("channels.wave.max_amount", "500000")
	v.SetDefault("channels.wave.phone_pattern", senegalPhonePattern)
	v.SetDefault("channels.wave.ref_prefix", "WAVE")
	v.SetDefault("channels.wave.fees.percentage", "1.0")
	v.SetDefault("channels.wave.fees.fixed", "0")
	v.SetDefault("channels.wave.fees.min", "25")
	v.SetDefault("channels.wave.fees.max", "1500")

	v.SetDefault("channels.orange_money.name", "Orange Money")
	v.SetDefault("channels.orange_money.active", true)
	v.SetDefault("channels.orange_money.success_rate", 0.82)
	v.SetDefault("channels.orange_money.decline_ceiling", 0.93)
	v.SetDefault("channels.orange_money.min_latency", "2s")
	v.SetDefault("channels.orange_money.max_latency", "5500ms")
	v.SetDefault("channels.orange_money.min_amount", "500")
	v.SetDefault("channels.orange_money.max_amount", "750000")
	v.SetDefault("channels.orange_money.phone_pattern", senegalPhonePattern)
	v.SetDefault("channels.orange_money.ref_prefix", "OM")
	v.SetDefault("channels.orange_money.fees.percentage", "1.5")
	v.SetDefault("channels.orange_money.fees.fixed", "50")
	v.SetDefault("channels.orange_money.fees.min", "100")
	v.SetDefault("channels.orange_money.fees.max", "2000")

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("identity.base_url", "")
	v.SetDefault("identity.timeout", "5s")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: MMT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("MMT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present; env vars alone are enough
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
