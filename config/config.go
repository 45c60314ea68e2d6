package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Payment  PaymentConfig  `yaml:"payment"`
	Referral ReferralConfig `yaml:"referral"`
	Reminder ReminderConfig `yaml:"reminder"`
	Session  SessionConfig  `yaml:"session"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
}

type BotConfig struct {
	Token        string  `yaml:"token" envconfig:"BOT_TOKEN"`
	Username     string  `yaml:"username" envconfig:"BOT_USERNAME"`
	TargetChatID int64   `yaml:"target_chat_id" envconfig:"TARGET_CHAT_ID"`
	AdminIDs     []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	AdminContact string  `yaml:"admin_contact" envconfig:"ADMIN_CONTACT"`
	Debug        bool    `yaml:"debug" envconfig:"BOT_DEBUG"`
}

type HTTPConfig struct {
	Address string `yaml:"address" envconfig:"HTTP_ADDRESS"`
}

type GRPCConfig struct {
	Address string `yaml:"address" envconfig:"GRPC_ADDRESS"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" envconfig:"DATABASE_URL"`
	Host     string `yaml:"host" ignored:"true"`
	Port     int    `yaml:"port" ignored:"true"`
	User     string `yaml:"user" ignored:"true"`
	Password string `yaml:"password" ignored:"true"`
	Name     string `yaml:"name" ignored:"true"`
	SSLMode  string `yaml:"ssl_mode" ignored:"true"`
}

// DSN prefers the full connection URL and falls back to the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" ignored:"true"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	BookingEventsTopic string   `yaml:"booking_events_topic" ignored:"true"`
	GroupID            string   `yaml:"group_id" ignored:"true"`
}

type PaymentConfig struct {
	TBankCard     string  `yaml:"tbank_card" envconfig:"TBANK_CARD_NUMBER"`
	TBankHolder   string  `yaml:"tbank_holder" envconfig:"TBANK_CARD_HOLDER"`
	KaspiCard     string  `yaml:"kaspi_card" envconfig:"KASPI_CARD_NUMBER"`
	ARSAlias      string  `yaml:"ars_alias" envconfig:"ARS_ALIAS"`
	USDTAddress   string  `yaml:"usdt_address" envconfig:"USDT_TRC20_ADDRESS"`
	CryptoNetwork string  `yaml:"crypto_network" envconfig:"CRYPTO_NETWORK"`
	USDToRUB      float64 `yaml:"usd_to_rub" envconfig:"USD_TO_RUB_RATE"`
	USDToKZT      float64 `yaml:"usd_to_kzt" envconfig:"USD_TO_KZT_RATE"`
	USDToARS      float64 `yaml:"usd_to_ars" envconfig:"USD_TO_ARS_RATE"`
}

type ReferralConfig struct {
	Discounts      []int  `yaml:"discounts"`
	CodeLength     int    `yaml:"code_length"`
	CodeAlphabet   string `yaml:"code_alphabet"`
	StartParameter string `yaml:"start_parameter"`
}

type ReminderConfig struct {
	LeadMinutes         int `yaml:"lead_minutes"`
	WindowMinutes       int `yaml:"window_minutes"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	GraceHours          int `yaml:"grace_hours"`
}

type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

type CatalogConfig struct {
	CoursesPath string `yaml:"courses_path"`
	LessonsPath string `yaml:"lessons_path"`
}

type AdminConfig struct {
	JWTSecret       string `yaml:"jwt_secret" envconfig:"ADMIN_JWT_SECRET"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes" ignored:"true"`
	StatsCacheTTL   int    `yaml:"stats_cache_ttl_seconds" ignored:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

func (r ReminderConfig) Lead() time.Duration { return time.Duration(r.LeadMinutes) * time.Minute }

func (r ReminderConfig) Window() time.Duration { return time.Duration(r.WindowMinutes) * time.Minute }

func (r ReminderConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

func (r ReminderConfig) Grace() time.Duration { return time.Duration(r.GraceHours) * time.Hour }

func (s SessionConfig) TTL() time.Duration { return time.Duration(s.TTLMinutes) * time.Minute }

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Address: ":8080"},
		GRPC: GRPCConfig{Address: ":9090"},
		Kafka: KafkaConfig{
			BookingEventsTopic: "booking_events",
			GroupID:            "coursebot-event-sink",
		},
		Payment: PaymentConfig{
			CryptoNetwork: "TRC-20",
			USDToRUB:      90,
			USDToKZT:      450,
			USDToARS:      1000,
		},
		Referral: ReferralConfig{
			Discounts:      []int{10, 15, 20, 25, 30, 50},
			CodeLength:     8,
			CodeAlphabet:   "ABCDEFGHJKLMNPQRSTUVWXYZ23456789",
			StartParameter: "ref_",
		},
		Reminder: ReminderConfig{
			LeadMinutes:         15,
			WindowMinutes:       1,
			PollIntervalSeconds: 60,
			GraceHours:          2,
		},
		Session: SessionConfig{TTLMinutes: 24 * 60},
		Catalog: CatalogConfig{
			CoursesPath: "data/courses.yaml",
			LessonsPath: "data/lessons.yaml",
		},
		Admin: AdminConfig{TokenTTLMinutes: 12 * 60, StatsCacheTTL: 60},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads the YAML file on top of Default and then applies environment
// overrides. A missing file is tolerated so the bot can run from env alone.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	sections := []interface{}{
		&cfg.Bot, &cfg.HTTP, &cfg.GRPC, &cfg.Database, &cfg.Redis,
		&cfg.Kafka, &cfg.Payment, &cfg.Admin, &cfg.Log,
	}
	for _, s := range sections {
		if err := envconfig.Process("", s); err != nil {
			return err
		}
	}
	return nil
}

var (
	ErrMissingBotToken = errors.New("bot token is required (BOT_TOKEN)")
	ErrMissingDatabase = errors.New("database connection is required (DATABASE_URL)")
	ErrMissingJWT      = errors.New("admin jwt secret is required (ADMIN_JWT_SECRET)")
)

// Validate checks the settings every process needs. Callers add their own
// requirements on top (the admin server needs a JWT secret, the worker does not).
func (c *Config) Validate() error {
	if c.Database.DSN() == "" {
		return ErrMissingDatabase
	}
	if c.Referral.CodeLength <= 0 || c.Referral.CodeAlphabet == "" {
		return errors.New("referral code length and alphabet must be set")
	}
	if c.Reminder.LeadMinutes <= 0 || c.Reminder.PollIntervalSeconds <= 0 {
		return errors.New("reminder lead time and poll interval must be positive")
	}
	return nil
}

func (c *Config) ValidateBot() error {
	if c.Bot.Token == "" {
		return ErrMissingBotToken
	}
	return c.Validate()
}

func (c *Config) ValidateAdmin() error {
	if c.Admin.JWTSecret == "" {
		return ErrMissingJWT
	}
	return c.Validate()
}

func (b BotConfig) IsAdmin(userID int64) bool {
	for _, id := range b.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
