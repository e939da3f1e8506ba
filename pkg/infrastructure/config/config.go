package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultZohoAPIBase      = "https://www.zohoapis.com"
	defaultZohoAccountsURL  = "https://accounts.zoho.com"
	defaultRequestsPerMin   = 90
	defaultHTTPTimeout      = 60 * time.Second
	defaultHTTPTimeoutSecs  = int(defaultHTTPTimeout / time.Second)
	defaultWorkers          = 4
	defaultListenAddr       = ":8080"
	defaultDBDriver         = "sqlite3"
	defaultDBDSN            = "./csatrack.db"
	defaultScheduleTimezone = "UTC"
)

// Config is the service configuration, read from YAML and overridden by environment variables
type Config struct {
	LogLevel string `yaml:"log_level"`

	TargetSKUs   []string            `yaml:"target_skus"`
	ClinicGroups map[string][]string `yaml:"clinic_groups"` // clinic name -> Zoho contact ids

	ZohoAPIBase        string `yaml:"zoho_api_base"`
	ZohoAccountsURL    string `yaml:"zoho_accounts_url"`
	ZohoOrganizationID string `yaml:"zoho_organization_id"`
	ZohoClientID       string `yaml:"zoho_client_id"`
	ZohoClientSecret   string `yaml:"zoho_client_secret"`
	ZohoRefreshToken   string `yaml:"zoho_refresh_token"`
	ZohoAccessToken    string `yaml:"zoho_access_token"`
	RequestsPerMinute  int    `yaml:"zoho_requests_per_minute"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	DBDriver string `yaml:"db_driver"` // sqlite3 or postgres
	DBDSN    string `yaml:"db_dsn"`

	ListenAddr string `yaml:"listen_addr"`
	Workers    int    `yaml:"workers"`

	RunAllSchedule string `yaml:"run_all_schedule"` // cron spec, empty disables
	Timezone       string `yaml:"timezone"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	TracingEnabled       bool    `yaml:"tracing_enabled"`
	TracingEndpoint      string  `yaml:"tracing_endpoint"`
	TracingSamplingRatio float64 `yaml:"tracing_sampling_ratio"`
	ServiceName          string  `yaml:"service_name"`

	Location *time.Location `yaml:"-"` // computed from Timezone
}

// Load reads path (when it exists), applies env overrides and defaults, and validates the result.
// CSATRACK_CONFIG replaces path when set.
func Load(path string) (Config, error) {
	var cfg Config

	if envPath := os.Getenv("CSATRACK_CONFIG"); envPath != "" {
		path = envPath
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envOverride(&c.LogLevel, "LOG_LEVEL")
	envOverride(&c.ZohoAPIBase, "ZOHO_API_BASE")
	envOverride(&c.ZohoAccountsURL, "ZOHO_ACCOUNTS_URL")
	envOverride(&c.ZohoOrganizationID, "ZOHO_ORGANIZATION_ID")
	envOverride(&c.ZohoClientID, "ZOHO_CLIENT_ID")
	envOverride(&c.ZohoClientSecret, "ZOHO_CLIENT_SECRET")
	envOverride(&c.ZohoRefreshToken, "ZOHO_REFRESH_TOKEN")
	envOverride(&c.ZohoAccessToken, "ZOHO_ACCESS_TOKEN")
	envOverrideInt(&c.RequestsPerMinute, "ZOHO_REQUESTS_PER_MINUTE")
	envOverrideInt(&c.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverride(&c.DBDriver, "DB_DRIVER")
	envOverride(&c.DBDSN, "DB_DSN")
	envOverride(&c.ListenAddr, "LISTEN_ADDR")
	envOverrideInt(&c.Workers, "WORKERS")
	envOverrideAllowEmpty(&c.RunAllSchedule, "RUN_ALL_SCHEDULE")
	envOverride(&c.Timezone, "TIMEZONE")
	envOverride(&c.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&c.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverrideBool(&c.TracingEnabled, "TRACING_ENABLED")
	envOverride(&c.TracingEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	envOverride(&c.ServiceName, "OTEL_SERVICE_NAME")

	if skus := os.Getenv("TARGET_SKUS"); skus != "" {
		c.TargetSKUs = splitList(skus)
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ZohoAPIBase == "" {
		c.ZohoAPIBase = defaultZohoAPIBase
	}
	if c.ZohoAccountsURL == "" {
		c.ZohoAccountsURL = defaultZohoAccountsURL
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = defaultRequestsPerMin
	}
	if c.ExternalHTTPTimeoutSeconds == 0 {
		c.ExternalHTTPTimeoutSeconds = defaultHTTPTimeoutSecs
	}
	if c.DBDriver == "" {
		c.DBDriver = defaultDBDriver
	}
	if c.DBDSN == "" && c.DBDriver == defaultDBDriver {
		c.DBDSN = defaultDBDSN
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.Workers == 0 {
		c.Workers = defaultWorkers
	}
	if c.Timezone == "" {
		c.Timezone = defaultScheduleTimezone
	}
	if c.ServiceName == "" {
		c.ServiceName = "csatrack"
	}
	if c.TracingSamplingRatio == 0 {
		c.TracingSamplingRatio = 1
	}
}

// Validate checks field ranges and cross-field requirements. It also resolves Location.
func (c *Config) Validate() error {
	if len(c.TargetSKUs) == 0 {
		return fmt.Errorf("target_skus must list at least one SKU")
	}
	for _, sku := range c.TargetSKUs {
		if strings.TrimSpace(sku) == "" {
			return fmt.Errorf("target_skus contains an empty SKU")
		}
	}
	for clinic, contacts := range c.ClinicGroups {
		if len(contacts) == 0 {
			return fmt.Errorf("clinic group %q has no contact ids", clinic)
		}
	}

	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("db_driver must be 'sqlite3' or 'postgres', got '%s'", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db_dsn is required when db_driver=%s", c.DBDriver)
	}

	oauthFields := map[string]string{
		"zoho_client_id":     c.ZohoClientID,
		"zoho_client_secret": c.ZohoClientSecret,
		"zoho_refresh_token": c.ZohoRefreshToken,
	}
	set := 0
	for _, v := range oauthFields {
		if v != "" {
			set++
		}
	}
	if set > 0 && set < len(oauthFields) {
		return fmt.Errorf("partial Zoho OAuth config: zoho_client_id, zoho_client_secret and zoho_refresh_token are required together")
	}

	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("invalid zoho_requests_per_minute '%d': must be >= 1", c.RequestsPerMinute)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers '%d': must be >= 1", c.Workers)
	}
	if c.TracingSamplingRatio < 0 || c.TracingSamplingRatio > 1 {
		return fmt.Errorf("invalid tracing_sampling_ratio '%f': must be between 0 and 1", c.TracingSamplingRatio)
	}
	if (c.SlackBotToken == "") != (c.SlackChannelID == "") {
		return fmt.Errorf("slack_bot_token and slack_channel_id must be set together")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}

// ZohoConfigured reports whether live API access is possible
func (c Config) ZohoConfigured() bool {
	return c.ZohoOrganizationID != "" && (c.ZohoAccessToken != "" || c.ZohoRefreshToken != "")
}

// SlackConfigured reports whether run summaries can be posted
func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

// HTTPTimeout returns the external request timeout
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.ExternalHTTPTimeoutSeconds) * time.Second
}

// Clinics returns the configured clinic names in sorted order
func (c Config) Clinics() []string {
	names := make([]string, 0, len(c.ClinicGroups))
	for name := range c.ClinicGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ContactIDs returns the contact ids of a clinic group
func (c Config) ContactIDs(clinic string) ([]string, bool) {
	ids, ok := c.ClinicGroups[clinic]
	return ids, ok
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = strings.TrimSpace(val)
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		}
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*field = b
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
