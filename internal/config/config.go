package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Notification backends.
const (
	NotifyRedis = "redis"
	NotifyKafka = "kafka"
	NotifyAMQP  = "amqp"
)

// Config stores service settings.
type Config struct {
	Port      int
	LogLevel  string
	DB        DB
	Redis     Redis
	Kafka     Kafka
	AMQP      AMQP
	Notify    Notify
	Dispatch  Dispatch
	Tracker   Tracker
	Route     Route
	Weather   Weather
	Auth      Auth
	RateLimit RateLimit
	Debug     Debug
}

// DB stores PostgreSQL settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN returns a libpq-style connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", d.User, d.Pass, d.Host, d.Port, d.Name)
}

// Redis stores live-store settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Kafka stores broker settings. Empty Brokers disables Kafka.
type Kafka struct {
	Brokers       []string
	GroupID       string
	DispatchTopic string
	NotifyTopic   string
}

// AMQP stores RabbitMQ settings for the amqp notification backend.
type AMQP struct {
	URL      string
	Exchange string
}

// Notify selects the notification backend.
type Notify struct {
	Backend string
}

// Dispatch tunes candidate selection and the offer loop.
type Dispatch struct {
	RadiusKm         float64
	MaxCandidates    int
	OfferWindow      time.Duration
	PollInterval     time.Duration
	LiveRecency      time.Duration
	OperationTimeout time.Duration
}

// Tracker tunes location ingestion.
type Tracker struct {
	LocationTTL      time.Duration
	FlushInterval    time.Duration
	LocationThrottle time.Duration
	DurationThrottle time.Duration
	MinDisplacementM float64
}

// Route stores route provider settings.
type Route struct {
	BaseURL     string
	APIKey      string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

// Weather stores weather provider settings. Empty APIKey disables refresh.
type Weather struct {
	BaseURL         string
	APIKey          string
	City            string
	RefreshInterval time.Duration
}

// Auth stores token settings. Empty JWTSecret switches to header-based actors.
type Auth struct {
	JWTSecret string
}

// RateLimit stores HTTP rate limit settings.
type Debug struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

type RateLimit struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	fs := pflag.CommandLine
	if fs.Lookup("port") == nil {
		fs.IntP("port", "p", defaultPort, "port to listen on")
	}
	fs.ParseErrorsWhitelist.UnknownFlags = true
	if !fs.Parsed() {
		if err := fs.Parse(os.Args[1:]); err != nil {
			return nil, fmt.Errorf("parse flags: %w", err)
		}
	}
	if err := v.BindPFlag("PORT", fs.Lookup("port")); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	p := parser{v: v}
	cfg := &Config{
		Port:     p.int("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),
		DB: DB{
			Host: v.GetString("POSTGRES_HOST"),
			Port: v.GetString("POSTGRES_PORT"),
			User: v.GetString("POSTGRES_USER"),
			Pass: v.GetString("POSTGRES_PASSWORD"),
			Name: v.GetString("POSTGRES_DB"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB"),
		},
		Kafka: Kafka{
			Brokers:       splitList(v.GetString("KAFKA_BROKERS")),
			GroupID:       v.GetString("KAFKA_GROUP_ID"),
			DispatchTopic: v.GetString("KAFKA_DISPATCH_TOPIC"),
			NotifyTopic:   v.GetString("KAFKA_NOTIFY_TOPIC"),
		},
		AMQP: AMQP{
			URL:      v.GetString("AMQP_URL"),
			Exchange: v.GetString("AMQP_EXCHANGE"),
		},
		Notify: Notify{Backend: strings.ToLower(v.GetString("NOTIFY_BACKEND"))},
		Dispatch: Dispatch{
			RadiusKm:         p.float("DISPATCH_RADIUS_KM"),
			MaxCandidates:    p.int("DISPATCH_MAX_CANDIDATES"),
			OfferWindow:      p.duration("DISPATCH_OFFER_WINDOW"),
			PollInterval:     p.duration("DISPATCH_POLL_INTERVAL"),
			LiveRecency:      p.duration("DISPATCH_LIVE_RECENCY"),
			OperationTimeout: p.duration("DISPATCH_OPERATION_TIMEOUT"),
		},
		Tracker: Tracker{
			LocationTTL:      p.duration("TRACKER_LOCATION_TTL"),
			FlushInterval:    p.duration("TRACKER_FLUSH_INTERVAL"),
			LocationThrottle: p.duration("TRACKER_LOCATION_THROTTLE"),
			DurationThrottle: p.duration("TRACKER_DURATION_THROTTLE"),
			MinDisplacementM: p.float("TRACKER_MIN_DISPLACEMENT_M"),
		},
		Route: Route{
			BaseURL:     v.GetString("ORS_BASE_URL"),
			APIKey:      v.GetString("ORS_API_KEY"),
			MaxAttempts: p.int("ORS_MAX_ATTEMPTS"),
			BaseDelay:   p.duration("ORS_BASE_DELAY"),
			MaxDelay:    p.duration("ORS_MAX_DELAY"),
			Timeout:     p.duration("ORS_TIMEOUT"),
		},
		Weather: Weather{
			BaseURL:         v.GetString("WEATHER_BASE_URL"),
			APIKey:          v.GetString("WEATHER_API_KEY"),
			City:            v.GetString("WEATHER_CITY"),
			RefreshInterval: p.duration("WEATHER_REFRESH_INTERVAL"),
		},
		Auth: Auth{JWTSecret: v.GetString("JWT_SECRET")},
		RateLimit: RateLimit{
			Enabled: p.bool("RATE_LIMIT_ENABLED"),
			Limit:   p.int("RATE_LIMIT_PER_WINDOW"),
			Window:  p.duration("RATE_LIMIT_WINDOW"),
		},
		Debug: Debug{
			Enabled: p.bool("DEBUG_ENABLED"),
			Addr:    v.GetString("DEBUG_ADDR"),
			User:    v.GetString("DEBUG_USER"),
			Pass:    v.GetString("DEBUG_PASSWORD"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_PORT %q: %w", cfg.DB.Port, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.Notify.Backend {
	case NotifyRedis:
	case NotifyKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("notify backend kafka requires KAFKA_BROKERS")
		}
	case NotifyAMQP:
		if c.AMQP.URL == "" {
			return fmt.Errorf("notify backend amqp requires AMQP_URL")
		}
	default:
		return fmt.Errorf("unknown notify backend: %q", c.Notify.Backend)
	}
	if c.Dispatch.RadiusKm <= 0 || c.Dispatch.MaxCandidates <= 0 {
		return fmt.Errorf("dispatch radius and max candidates must be positive")
	}
	if c.Dispatch.OfferWindow <= 0 || c.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("dispatch offer window and poll interval must be positive")
	}
	if c.Tracker.FlushInterval <= 0 || c.Tracker.LocationTTL <= 0 {
		return fmt.Errorf("tracker flush interval and location ttl must be positive")
	}
	return nil
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) int(key string) int {
	raw := strings.TrimSpace(p.v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n
}

func (p *parser) float(key string) float64 {
	raw := strings.TrimSpace(p.v.GetString(key))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f
}

func (p *parser) duration(key string) time.Duration {
	raw := strings.TrimSpace(p.v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d
}

func (p *parser) bool(key string) bool {
	raw := strings.TrimSpace(p.v.GetString(key))
	b, err := strconv.ParseBool(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
