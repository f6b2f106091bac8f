package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Line     LineConfig     `mapstructure:"line"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the backing store: "mysql" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MySQLConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Database string `mapstructure:"database"`
	MaxOpen  int    `mapstructure:"max_open_conns"`
}

// DSN keeps the connection string format the service has always used:
// user:password@tcp(127.0.0.1:3306)/db
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@%s/%s?parseTime=true&loc=UTC&clientFoundRows=true&multiStatements=true", c.User, c.Password, c.Host, c.Database)
}

// RedisConfig is optional. With an empty Addr the reminder sweep runs
// without a cross-instance lock.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ReminderConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	LeadTime        time.Duration `mapstructure:"lead_time"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
	// BaseURL is embedded in reminder messages so recipients can open the deal.
	BaseURL string `mapstructure:"base_url"`
	// TriggerToken guards POST /internal/reminders/sweep. Empty disables the route.
	TriggerToken string `mapstructure:"trigger_token"`
}

type LineConfig struct {
	Endpoint           string `mapstructure:"endpoint"`
	ChannelAccessToken string `mapstructure:"channel_access_token"`
	// ChannelSecret signs webhook bodies. Empty disables the webhook route.
	ChannelSecret string `mapstructure:"channel_secret"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{Driver: "mysql"},
		MySQL: MySQLConfig{
			User:     "user",
			Password: "password",
			Host:     "tcp(127.0.0.1:3306)",
			Database: "exchange_db",
			MaxOpen:  20,
		},
		Reminder: ReminderConfig{
			Enabled:         true,
			Interval:        time.Minute,
			LeadTime:        24 * time.Hour,
			LockTTL:         30 * time.Second,
			DeliveryTimeout: 10 * time.Second,
		},
		Line: LineConfig{Endpoint: "https://api.line.me"},
		SMTP: SMTPConfig{Host: "smtp.gmail.com", Port: 587},
		Log:  LogConfig{Level: "info"},
	}
}

// SetDefaults registers defaults and environment bindings on v. The MySQL and
// PORT variable names are the ones existing deployments already export.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("storage.driver", d.Storage.Driver)

	v.SetDefault("mysql.user", d.MySQL.User)
	v.SetDefault("mysql.password", d.MySQL.Password)
	v.SetDefault("mysql.host", d.MySQL.Host)
	v.SetDefault("mysql.database", d.MySQL.Database)
	v.SetDefault("mysql.max_open_conns", d.MySQL.MaxOpen)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)

	v.SetDefault("reminder.enabled", d.Reminder.Enabled)
	v.SetDefault("reminder.interval", d.Reminder.Interval)
	v.SetDefault("reminder.lead_time", d.Reminder.LeadTime)
	v.SetDefault("reminder.lock_ttl", d.Reminder.LockTTL)
	v.SetDefault("reminder.delivery_timeout", d.Reminder.DeliveryTimeout)
	v.SetDefault("reminder.base_url", d.Reminder.BaseURL)
	v.SetDefault("reminder.trigger_token", d.Reminder.TriggerToken)

	v.SetDefault("line.endpoint", d.Line.Endpoint)
	v.SetDefault("line.channel_access_token", d.Line.ChannelAccessToken)
	v.SetDefault("line.channel_secret", d.Line.ChannelSecret)

	v.SetDefault("smtp.host", d.SMTP.Host)
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.username", d.SMTP.Username)
	v.SetDefault("smtp.password", d.SMTP.Password)
	v.SetDefault("smtp.from", d.SMTP.From)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)

	v.SetEnvPrefix("EXCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("server.port", "EXCHANGE_SERVER_PORT", "PORT")
	_ = v.BindEnv("mysql.user", "EXCHANGE_MYSQL_USER", "MYSQL_USER")
	_ = v.BindEnv("mysql.password", "EXCHANGE_MYSQL_PASSWORD", "MYSQL_PWD")
	_ = v.BindEnv("mysql.host", "EXCHANGE_MYSQL_HOST", "MYSQL_HOST")
	_ = v.BindEnv("mysql.database", "EXCHANGE_MYSQL_DATABASE", "MYSQL_DATABASE")
	_ = v.BindEnv("redis.addr", "EXCHANGE_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("line.channel_access_token", "EXCHANGE_LINE_CHANNEL_ACCESS_TOKEN", "LINE_CHANNEL_ACCESS_TOKEN")
	_ = v.BindEnv("line.channel_secret", "EXCHANGE_LINE_CHANNEL_SECRET", "LINE_CHANNEL_SECRET")
	_ = v.BindEnv("smtp.username", "EXCHANGE_SMTP_USERNAME", "GMAIL_USER")
	_ = v.BindEnv("smtp.password", "EXCHANGE_SMTP_PASSWORD", "GMAIL_PASS")
}

// Load reads an optional config file, then unmarshals and validates.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "mysql", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: must be mysql or memory (got: %q)", c.Storage.Driver))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port: must not be empty"))
	}
	if c.Reminder.Enabled && c.Reminder.Interval <= 0 {
		errs = append(errs, fmt.Errorf("reminder.interval: must be positive (got: %s)", c.Reminder.Interval))
	}
	if c.Reminder.LeadTime < 0 {
		errs = append(errs, fmt.Errorf("reminder.lead_time: must not be negative (got: %s)", c.Reminder.LeadTime))
	}
	if c.Reminder.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("reminder.lock_ttl: must be positive (got: %s)", c.Reminder.LockTTL))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: must be one of debug, info, warn, error (got: %q)", c.Log.Level))
	}
	return errors.Join(errs...)
}
