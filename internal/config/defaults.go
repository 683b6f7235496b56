package config

import (
	"time"

	"github.com/spf13/viper"
)

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "test_db",
}

var defaultRedis = Redis{
	Addr: "127.0.0.1:6379",
}

var defaultDispatch = Dispatch{
	RadiusKm:         5,
	MaxCandidates:    10,
	OfferWindow:      20 * time.Second,
	PollInterval:     time.Second,
	LiveRecency:      10 * time.Minute,
	OperationTimeout: 3 * time.Second,
}

var defaultTracker = Tracker{
	LocationTTL:      3 * time.Hour,
	FlushInterval:    time.Minute,
	LocationThrottle: 5 * time.Second,
	DurationThrottle: 15 * time.Second,
	MinDisplacementM: 20,
}

var defaultRoute = Route{
	BaseURL:     "https://api.openrouteservice.org",
	MaxAttempts: 3,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    time.Second,
	Timeout:     5 * time.Second,
}

var defaultWeather = Weather{
	BaseURL:         "https://api.openweathermap.org",
	City:            "Tashkent",
	RefreshInterval: 30 * time.Minute,
}

var defaultRateLimit = RateLimit{
	Enabled: false,
	Limit:   30,
	Window:  time.Second,
}

// DefaultPort returns the default port.
func DefaultPort() int { return defaultPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultRedis returns the default Redis settings.
func DefaultRedis() Redis { return defaultRedis }

// DefaultDispatch returns the default dispatch tuning.
func DefaultDispatch() Dispatch { return defaultDispatch }

// DefaultTracker returns the default location tracker tuning.
func DefaultTracker() Tracker { return defaultTracker }

// DefaultRoute returns the default route provider settings.
func DefaultRoute() Route { return defaultRoute }

// DefaultWeather returns the default weather provider settings.
func DefaultWeather() Weather { return defaultWeather }

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit { return defaultRateLimit }

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("POSTGRES_HOST", defaultDB.Host)
	v.SetDefault("POSTGRES_PORT", defaultDB.Port)
	v.SetDefault("POSTGRES_USER", defaultDB.User)
	v.SetDefault("POSTGRES_PASSWORD", defaultDB.Pass)
	v.SetDefault("POSTGRES_DB", defaultDB.Name)

	v.SetDefault("REDIS_ADDR", defaultRedis.Addr)
	v.SetDefault("REDIS_DB", "0")

	v.SetDefault("KAFKA_GROUP_ID", "service-dispatch")
	v.SetDefault("KAFKA_DISPATCH_TOPIC", "orders.dispatch")
	v.SetDefault("KAFKA_NOTIFY_TOPIC", "notifications")

	v.SetDefault("AMQP_EXCHANGE", "notifications")
	v.SetDefault("NOTIFY_BACKEND", NotifyRedis)

	v.SetDefault("DISPATCH_RADIUS_KM", "5")
	v.SetDefault("DISPATCH_MAX_CANDIDATES", "10")
	v.SetDefault("DISPATCH_OFFER_WINDOW", defaultDispatch.OfferWindow.String())
	v.SetDefault("DISPATCH_POLL_INTERVAL", defaultDispatch.PollInterval.String())
	v.SetDefault("DISPATCH_LIVE_RECENCY", defaultDispatch.LiveRecency.String())
	v.SetDefault("DISPATCH_OPERATION_TIMEOUT", defaultDispatch.OperationTimeout.String())

	v.SetDefault("TRACKER_LOCATION_TTL", defaultTracker.LocationTTL.String())
	v.SetDefault("TRACKER_FLUSH_INTERVAL", defaultTracker.FlushInterval.String())
	v.SetDefault("TRACKER_LOCATION_THROTTLE", defaultTracker.LocationThrottle.String())
	v.SetDefault("TRACKER_DURATION_THROTTLE", defaultTracker.DurationThrottle.String())
	v.SetDefault("TRACKER_MIN_DISPLACEMENT_M", "20")

	v.SetDefault("ORS_BASE_URL", defaultRoute.BaseURL)
	v.SetDefault("ORS_MAX_ATTEMPTS", "3")
	v.SetDefault("ORS_BASE_DELAY", defaultRoute.BaseDelay.String())
	v.SetDefault("ORS_MAX_DELAY", defaultRoute.MaxDelay.String())
	v.SetDefault("ORS_TIMEOUT", defaultRoute.Timeout.String())

	v.SetDefault("WEATHER_BASE_URL", defaultWeather.BaseURL)
	v.SetDefault("WEATHER_CITY", defaultWeather.City)
	v.SetDefault("WEATHER_REFRESH_INTERVAL", defaultWeather.RefreshInterval.String())

	v.SetDefault("RATE_LIMIT_ENABLED", "false")
	v.SetDefault("RATE_LIMIT_PER_WINDOW", "30")
	v.SetDefault("RATE_LIMIT_WINDOW", defaultRateLimit.Window.String())

	v.SetDefault("DEBUG_ENABLED", "false")
	v.SetDefault("DEBUG_ADDR", "127.0.0.1:6060")
}
