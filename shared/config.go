package shared

import (
	"encoding/json"
	"github.com/tailscale/hujson"
	"log"
	"os"
)

const (
	configVarName  = "CONFIG"                // If set, will load config.json from this path and not from devConfigPath
	secretsVarName = "SECRETS"               // If set, will load secrets.json from this path and not from devSecretsPath
	devConfigPath  = "dev/config.dev.jsonc"  // Path to config.json in development environment
	devSecretsPath = "dev/secrets.dev.jsonc" // Path to secrets.json in development environment
)

const (
	SigPolicyStrict  = "strict"
	SigPolicyLenient = "lenient"
)

type Config struct {
	Secrets         Secrets         `json:"-"`
	LogFile         string          `json:"log_file"`
	LogLevel        string          `json:"log_level"`
	ServicePort     uint            `json:"service_port"`
	Host            string          `json:"host"`
	DbFile          string          `json:"db_file"`
	SignaturePolicy string          `json:"signature_policy"` // "strict" or "lenient"
	Delivery        DeliveryConfig  `json:"delivery"`
	Schedule        ScheduleConfig  `json:"schedule"`
	Locations       []*LocationInfo `json:"locations"`
}

type DeliveryConfig struct {
	BatchSize        int   `json:"batch_size"`
	TimeoutSec       int   `json:"timeout_sec"`
	MaxAttempts      int   `json:"max_attempts"`
	BackoffSec       []int `json:"backoff_sec"`
	QueueEntryTtlSec int   `json:"queue_entry_ttl_sec"`
}

type ScheduleConfig struct {
	ForecastCheckMin int `json:"forecast_check_min"`
	AlertCheckMin    int `json:"alert_check_min"`
	QueueDrainSec    int `json:"queue_drain_sec"`
}

type LocationInfo struct {
	Id       string   `json:"id"`
	Name     string   `json:"name"`
	Summary  string   `json:"summary"`
	Hashtags []string `json:"hashtags"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
}

type Secrets struct {
	MetricsAuth string   `json:"metrics_auth"`
	ApiKeys     []string `json:"api_keys"`
}

func LoadConfig() *Config {

	// Where are our config and secrets files?
	cfgPath := os.Getenv(configVarName)
	if len(cfgPath) == 0 {
		cfgPath = devConfigPath
	}
	secretsPath := os.Getenv(secretsVarName)
	if len(secretsPath) == 0 {
		secretsPath = devSecretsPath
	}

	// Read config file
	var config Config
	mustDeserializeFile(cfgPath, &config)
	// Read secrets member from secrets file
	mustDeserializeFile(secretsPath, &config.Secrets)
	ApplyDefaults(&config)
	return &config
}

// ApplyDefaults fills in the delivery and schedule tunables left out of the config file.
func ApplyDefaults(cfg *Config) {
	if cfg.Delivery.BatchSize <= 0 {
		cfg.Delivery.BatchSize = 10
	}
	if cfg.Delivery.TimeoutSec <= 0 {
		cfg.Delivery.TimeoutSec = 30
	}
	if cfg.Delivery.MaxAttempts <= 0 {
		cfg.Delivery.MaxAttempts = 3
	}
	if len(cfg.Delivery.BackoffSec) == 0 {
		cfg.Delivery.BackoffSec = []int{1, 5, 15}
	}
	if cfg.Delivery.QueueEntryTtlSec <= 0 {
		cfg.Delivery.QueueEntryTtlSec = 24 * 3600
	}
	if cfg.Schedule.ForecastCheckMin <= 0 {
		cfg.Schedule.ForecastCheckMin = 15
	}
	if cfg.Schedule.AlertCheckMin <= 0 {
		cfg.Schedule.AlertCheckMin = 5
	}
	if cfg.Schedule.QueueDrainSec <= 0 {
		cfg.Schedule.QueueDrainSec = 10
	}
	if cfg.SignaturePolicy != SigPolicyLenient {
		cfg.SignaturePolicy = SigPolicyStrict
	}
}

func mustDeserializeFile[T any](fileName string, obj *T) {
	var err error
	var cfgJson []byte
	cfgJson, err = os.ReadFile(fileName)
	if err != nil {
		log.Fatal(err)
	}
	// JSONC => JSON
	cfgJson, err = standardizeJSON(cfgJson)
	if err != nil {
		log.Fatal(err)
	}
	// Parse
	if err := json.Unmarshal(cfgJson, obj); err != nil {
		log.Fatal(err)
	}
}

func standardizeJSON(b []byte) ([]byte, error) {
	ast, err := hujson.Parse(b)
	if err != nil {
		return b, err
	}
	ast.Standardize()
	return ast.Pack(), nil
}
