package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the application configuration structure.
// It contains settings for the environment, HTTP server, database connection,
// matching engine, notification gateway and graceful shutdown behavior.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	// HTTP contains all HTTP server related configurations
	HTTP struct {
		// Addr is the address and port the HTTP server will listen on
		Addr string `env:"HTTP_ADDR" env-default:":8080" yaml:"addr"`
		// ReadTimeout is the maximum duration for reading the entire request, including the body
		ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"1m" yaml:"readTimeout"`
		// ReadHeaderTimeout is the amount of time allowed to read request headers
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" env-default:"10s" yaml:"readHeaderTimeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response
		WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m" yaml:"writeTimeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request when keep-alives are enabled
		IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"2m" yaml:"idleTimeout"`
		// RequestTimeout is the maximum time allowed for processing a single request
		RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" env-default:"10s" yaml:"requestTimeout"`
		// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
		MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" env-default:"0" yaml:"maxHeaderBytes"`
		// MetricsPath defines the URL path where metrics are exposed
		MetricsPath string `env:"HTTP_METRICS_PATH" env-default:"/metrics" yaml:"metricsPath"`
	} `yaml:"http"`

	// Database contains all database connection related configurations
	Database struct {
		// Username for database authentication
		Username string `env:"DATABASE_USERNAME" env-default:"myuser" yaml:"username"`
		// Password for database authentication
		Password string `env:"DATABASE_PASSWORD" env-default:"mypassword" yaml:"password"`
		// Host is the database server hostname or IP address
		Host string `env:"DATABASE_HOST" env-default:"localhost" yaml:"host"`
		// Port is the database server port number
		Port int `env:"DATABASE_PORT" env-default:"5432" yaml:"port"`
		// SslMode defines the SSL mode for the database connection
		SslMode string `env:"DATABASE_SSL_MODE" env-default:"disable" yaml:"sslMode"`
		// DatabaseName is the name of the database to connect to
		DatabaseName string `env:"DATABASE_NAME" env-default:"bloodlink" yaml:"name"`
		// MaxOpenConnections limits the number of open connections to the database
		MaxOpenConnections int `env:"DATABASE_MAX_OPEN_CONNECTIONS" env-default:"10" yaml:"maxOpenConnections"`
		// MaxIdleConnections limits the number of connections in the idle connection pool
		MaxIdleConnections int `env:"DATABASE_MAX_IDLE_CONNECTIONS" env-default:"8" yaml:"maxIdleConnections"`
		// ConnMaxLifetime is the maximum amount of time a connection may be reused
		ConnMaxLifetime time.Duration `env:"DATABASE_CONNECTION_MAX_LIFETIME" env-default:"3m" yaml:"connMaxLifetime"`
		// ConnMaxIdleTime is the maximum amount of time a connection may be idle
		ConnMaxIdleTime time.Duration `env:"DATABASE_CONNECTION_MAX_IDLE_TIME" env-default:"3m" yaml:"connMaxIdleTime"`
	} `yaml:"database"`

	// Matching tunes the donor matching pipeline
	Matching struct {
		// InitialRadiusKm is the search radius for urgent and routine requests
		InitialRadiusKm float64 `env:"MATCHING_INITIAL_RADIUS_KM" env-default:"5" yaml:"initialRadiusKm"`
		// CriticalRadiiKm is the widening radius ladder for critical requests
		CriticalRadiiKm []float64 `env:"MATCHING_CRITICAL_RADII_KM" env-default:"5,10,25,50" yaml:"criticalRadiiKm"`
		// TopN caps how many ranked candidates are notified per run
		TopN int `env:"MATCHING_TOP_N" env-default:"10" yaml:"topN"`
		// NotifyTimeout bounds each individual notification dispatch
		NotifyTimeout time.Duration `env:"MATCHING_NOTIFY_TIMEOUT" env-default:"5s" yaml:"notifyTimeout"`
		// NotifyConcurrency bounds parallel notification dispatches per run
		NotifyConcurrency int `env:"MATCHING_NOTIFY_CONCURRENCY" env-default:"4" yaml:"notifyConcurrency"`
		// DeferralPeriod is the exclusion window after a donation
		DeferralPeriod time.Duration `env:"MATCHING_DEFERRAL_PERIOD" env-default:"2160h" yaml:"deferralPeriod"`
		// WeightProximity weights closeness to the request location in the candidate score
		WeightProximity float64 `env:"MATCHING_WEIGHT_PROXIMITY" env-default:"0.45" yaml:"weightProximity"`
		// WeightReliability weights the donor rating in the candidate score
		WeightReliability float64 `env:"MATCHING_WEIGHT_RELIABILITY" env-default:"0.25" yaml:"weightReliability"`
		// WeightExperience weights the donor donation count in the candidate score
		WeightExperience float64 `env:"MATCHING_WEIGHT_EXPERIENCE" env-default:"0.2" yaml:"weightExperience"`
		// VerifiedBonus is the flat score bonus for identity verified donors
		VerifiedBonus float64 `env:"MATCHING_VERIFIED_BONUS" env-default:"0.1" yaml:"verifiedBonus"`
		// CellSizeKm is the spatial index grid cell edge length
		CellSizeKm float64 `env:"MATCHING_CELL_SIZE_KM" env-default:"5" yaml:"cellSizeKm"`
		// MaxAttempts is the maximum number of attempts the background worker
		// makes on a matching job before giving up
		MaxAttempts int `env:"MATCHING_MAX_ATTEMPTS" env-default:"3" yaml:"maxAttempts"`
		// UniqueJobPeriod is the lookback window during which a second job for
		// the same request is considered a duplicate
		UniqueJobPeriod time.Duration `env:"MATCHING_UNIQUE_JOB_PERIOD" env-default:"24h" yaml:"uniqueJobPeriod"`
	} `yaml:"matching"`

	// Notifier configures the outbound notification gateway
	Notifier struct {
		// BaseURL is the gateway endpoint
		BaseURL string `env:"NOTIFIER_BASE_URL" env-default:"http://localhost:9090" yaml:"baseUrl"`
		// Token authenticates against the gateway
		Token string `env:"NOTIFIER_TOKEN" env-default:"" yaml:"token"`
		// Channel selects push or sms delivery
		Channel string `env:"NOTIFIER_CHANNEL" env-default:"push" yaml:"channel"`
	} `yaml:"notifier"`

	// Geocoder configures the reverse-geocoding provider
	Geocoder struct {
		// BaseURL is the Nominatim compatible endpoint
		BaseURL string `env:"GEOCODER_BASE_URL" env-default:"https://nominatim.openstreetmap.org" yaml:"baseUrl"`
		// UserAgent identifies this service to the provider
		UserAgent string `env:"GEOCODER_USER_AGENT" env-default:"bloodlink" yaml:"userAgent"`
	} `yaml:"geocoder"`

	// JWT contains token settings for the HTTP API
	JWT struct {
		// PrivateKey is the PEM encoded RSA private key used by the jwt
		// subcommand to mint tokens
		PrivateKey string `env:"JWT_PRIVATE_KEY" env-default:"" yaml:"privateKey"`
		// PublicKey is the PEM encoded RSA public key used to verify bearer tokens
		PublicKey string `env:"JWT_PUBLIC_KEY" env-default:"" yaml:"publicKey"`
	} `yaml:"jwt"`

	// GracefulShutdownTimeout is the maximum duration to wait for ongoing requests to complete during shutdown
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" env-default:"10s" yaml:"gracefulShutdownTimeout"` //nolint: lll
}

// Load receives the path for yaml config file and returns a filled Config struct.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}
