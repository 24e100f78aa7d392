package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/settlement"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	MaxAge         time.Duration `mapstructure:"max_age"` // Retention of settlement events in the stream
}

// Enabled reports whether event publishing is configured
func (c *NATSConfig) Enabled() bool {
	return c.URL != ""
}

// SolanaConfig holds ledger configuration
type SolanaConfig struct {
	Network    domain.Network    `mapstructure:"network"`
	RPCURL     string            `mapstructure:"rpc_url"`
	Commitment domain.Commitment `mapstructure:"commitment"`
	// Mints and PlatformAddresses are keyed by network name
	Mints               map[string]string `mapstructure:"mints"`
	PlatformAddresses   map[string]string `mapstructure:"platform_addresses"`
	ConfirmationTimeout time.Duration     `mapstructure:"confirmation_timeout"`
	ProvisioningTimeout time.Duration     `mapstructure:"provisioning_timeout"`
	PollInterval        time.Duration     `mapstructure:"poll_interval"`
	SendMaxRetries      uint              `mapstructure:"send_max_retries"`
	ReadRetries         uint64            `mapstructure:"read_retries"`
	BatchItemSpacing    time.Duration     `mapstructure:"batch_item_spacing"`
	// RequestsPerSecond throttles RPC calls locally, zero disables throttling
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Endpoint returns the configured RPC URL or the network's public endpoint
func (c *SolanaConfig) Endpoint() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return c.Network.DefaultRPCURL()
}

// MintAddress returns the USDC mint of the configured network
func (c *SolanaConfig) MintAddress() string {
	if mint, ok := c.Mints[string(c.Network)]; ok && mint != "" {
		return mint
	}
	return c.Network.DefaultUSDCMint()
}

// PlatformAddress returns the platform treasury of the configured network
func (c *SolanaConfig) PlatformAddress() string {
	if addr, ok := c.PlatformAddresses[string(c.Network)]; ok && addr != "" {
		return addr
	}
	return domain.DEFAULT_PLATFORM_ADDRESS
}

// SendOptions returns the transaction submission options
func (c *SolanaConfig) SendOptions() domain.SendOptions {
	opts := domain.DefaultSendOptions
	if c.SendMaxRetries > 0 {
		opts.MaxRetries = c.SendMaxRetries
	}
	return opts
}

// SplitOverrideConfig is a promotional ratio window.
// From and Until are RFC 3339 timestamps, an empty Until leaves the window open.
type SplitOverrideConfig struct {
	PayeeBps    uint16 `mapstructure:"payee_bps"`
	PlatformBps uint16 `mapstructure:"platform_bps"`
	From        string `mapstructure:"from"`
	Until       string `mapstructure:"until"`
}

// SplitConfig holds the payee/platform split ratio
type SplitConfig struct {
	PayeeBps    uint16                `mapstructure:"payee_bps"`
	PlatformBps uint16                `mapstructure:"platform_bps"`
	Overrides   []SplitOverrideConfig `mapstructure:"overrides"`
}

// Schedule converts the split configuration into a validated ratio schedule
func (c *SplitConfig) Schedule() (settlement.RatioSchedule, error) {
	schedule := settlement.RatioSchedule{
		Base: domain.SplitRatio{PayeeBasisPoints: c.PayeeBps, PlatformBasisPoints: c.PlatformBps},
	}

	for i, o := range c.Overrides {
		from, err := time.Parse(time.RFC3339, o.From)
		if err != nil {
			return settlement.RatioSchedule{}, fmt.Errorf("split override %d: invalid from: %w", i, err)
		}
		var until time.Time
		if o.Until != "" {
			until, err = time.Parse(time.RFC3339, o.Until)
			if err != nil {
				return settlement.RatioSchedule{}, fmt.Errorf("split override %d: invalid until: %w", i, err)
			}
		}
		schedule.Overrides = append(schedule.Overrides, settlement.RatioOverride{
			Ratio: domain.SplitRatio{PayeeBasisPoints: o.PayeeBps, PlatformBasisPoints: o.PlatformBps},
			From:  from,
			Until: until,
		})
	}

	if err := schedule.Validate(); err != nil {
		return settlement.RatioSchedule{}, err
	}
	return schedule, nil
}

// VerifierConfig holds payment verification configuration
type VerifierConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Interval time.Duration `mapstructure:"interval"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
	// AllowedOrigins restricts CORS, empty allows every origin
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	WorkerPoolSize int `mapstructure:"pool_size"`
}

// ReconciliationSweeperConfig holds configuration for the reconciliation sweeper
type ReconciliationSweeperConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
	ExpireAfter time.Duration `mapstructure:"expire_after"`
	Interval    time.Duration `mapstructure:"interval"`
	Worker      WorkerConfig  `mapstructure:"worker"`
}

// SettlerConfig holds configuration for the settler CLI
type SettlerConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Database    DatabaseConfig `mapstructure:"database"`
	NATS        NATSConfig     `mapstructure:"nats"`
	Solana      SolanaConfig   `mapstructure:"solana"`
	Split       SplitConfig    `mapstructure:"split"`
	KeypairPath string         `mapstructure:"keypair_path"`
}

// APIConfig holds configuration for API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Solana     SolanaConfig   `mapstructure:"solana"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Verifier   VerifierConfig `mapstructure:"verifier"`
}

// SweeperConfig holds configuration for the sweeper program
type SweeperConfig struct {
	BaseConfig            `mapstructure:",squash"`
	Database              DatabaseConfig              `mapstructure:"database"`
	NATS                  NATSConfig                  `mapstructure:"nats"`
	Solana                SolanaConfig                `mapstructure:"solana"`
	ReconciliationSweeper ReconciliationSweeperConfig `mapstructure:"reconciliation_sweeper"`
}

// LoadSettlerConfig loads configuration for the settler CLI
func LoadSettlerConfig(configFile string, envPath string) (*SettlerConfig, error) {
	v := configureViper("settler", configFile, envPath)

	// Set defaults
	setCommonDefaults(v)
	v.SetDefault("split.payee_bps", domain.DefaultSplitRatio.PayeeBasisPoints)
	v.SetDefault("split.platform_bps", domain.DefaultSplitRatio.PlatformBasisPoints)
	v.SetDefault("solana.batch_item_spacing", "1s")
	v.SetDefault("keypair_path", "config/keypair.json")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config SettlerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateSolana(&config.Solana); err != nil {
		return nil, err
	}
	if _, err := config.Split.Schedule(); err != nil {
		return nil, fmt.Errorf("invalid split config: %w", err)
	}

	return &config, nil
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	setCommonDefaults(v)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 90) // verification polls the ledger for up to a minute
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("verifier.attempts", 20)
	v.SetDefault("verifier.interval", "3s")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateSolana(&config.Solana); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadSweeperConfig loads configuration for the sweeper program
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	// Set defaults
	setCommonDefaults(v)
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("reconciliation_sweeper.batch_size", 20)
	v.SetDefault("reconciliation_sweeper.stale_after", "2m")
	v.SetDefault("reconciliation_sweeper.expire_after", "24h")
	v.SetDefault("reconciliation_sweeper.interval", "1m")
	v.SetDefault("reconciliation_sweeper.worker.pool_size", 5)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg SweeperConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if cfg.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}
	if err := validateSolana(&cfg.Solana); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setCommonDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "SETTLEMENT_EVENTS")
	v.SetDefault("nats.max_age", "168h")
	v.SetDefault("solana.network", string(domain.NetworkMainnetBeta))
	v.SetDefault("solana.commitment", string(domain.CommitmentConfirmed))
	v.SetDefault("solana.confirmation_timeout", "90s")
	v.SetDefault("solana.provisioning_timeout", "60s")
	v.SetDefault("solana.poll_interval", "2s")
	v.SetDefault("solana.send_max_retries", 5)
	v.SetDefault("solana.read_retries", 3)
	v.SetDefault("solana.burst", 5)
}

// readConfig reads the config file, falling back to environment variables when there is none
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var error viper.ConfigFileNotFoundError
		if errors.As(err, &error) {
			// Config file not found, use environment variables
		} else {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func validateSolana(c *SolanaConfig) error {
	if !domain.IsValidNetwork(c.Network) {
		return fmt.Errorf("invalid solana.network: %q", c.Network)
	}
	switch c.Commitment {
	case domain.CommitmentProcessed, domain.CommitmentConfirmed, domain.CommitmentFinalized:
	default:
		return fmt.Errorf("invalid solana.commitment: %q", c.Commitment)
	}
	if _, err := settlement.ParseAddress(c.MintAddress()); err != nil {
		return fmt.Errorf("invalid mint for %s: %w", c.Network, err)
	}
	if _, err := settlement.ParseAddress(c.PlatformAddress()); err != nil {
		return fmt.Errorf("invalid platform address for %s: %w", c.Network, err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/sweeper/, cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("FF_SETTLEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		"keypair_path",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.max_age",
		// Solana
		"solana.network",
		"solana.rpc_url",
		"solana.commitment",
		"solana.confirmation_timeout",
		"solana.provisioning_timeout",
		"solana.poll_interval",
		"solana.send_max_retries",
		"solana.read_retries",
		"solana.batch_item_spacing",
		"solana.requests_per_second",
		"solana.burst",
		// Split
		"split.payee_bps",
		"split.platform_bps",
		// Verifier
		"verifier.attempts",
		"verifier.interval",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.allowed_origins",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// Reconciliation sweeper
		"reconciliation_sweeper.batch_size",
		"reconciliation_sweeper.stale_after",
		"reconciliation_sweeper.expire_after",
		"reconciliation_sweeper.interval",
		"reconciliation_sweeper.worker.pool_size",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
