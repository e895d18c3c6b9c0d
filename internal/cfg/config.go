// Package cfg provides the configuration file model.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/simplesurance/mergebot/internal/boterr"
)

const (
	DefaultLogFormat           = "logfmt"
	DefaultLogTimeKey          = "time_iso8601"
	DefaultLogLevel            = "info"
	DefaultAzureWebhookURL     = "/webhook"
	DefaultGithubWebhookURL    = "/webhook/github"
	DefaultOrganizationBaseURL = "https://dev.azure.com"
	DefaultJWTValidity         = "8760h"
	DefaultMonitorInitialDelay = "1m"
	DefaultMonitorInterval     = "30s"
	DefaultMonitorItemTimeout  = "1m"
)

type Config struct {
	HTTPListenAddr  string `toml:"http_server_listen_addr"`
	HTTPSListenAddr string `toml:"https_server_listen_addr"`
	HTTPSCertFile   string `toml:"https_ssl_cert_file"`
	HTTPSKeyFile    string `toml:"https_ssl_key_file"`
	LogFormat       string `toml:"log_format"`
	LogTimeKey      string `toml:"log_time_key"`
	LogLevel        string `toml:"log_level"`
	// DryRun enables simulating write operations at the git hosting
	// services.
	DryRun bool `toml:"dry_run"`

	AzureDevOps AzureDevOps `toml:"azure_devops"`
	JWT         JWT         `toml:"jwt"`
	Github      Github      `toml:"github"`
	Monitor     Monitor     `toml:"monitor"`
	Webhook     Webhook     `toml:"webhook"`
	Policies    []*Policy   `toml:"policy"`
}

type AzureDevOps struct {
	// PublisherID and ExtensionID identify the extension whose data
	// documents contain the policy configurations. If they are not set,
	// the policies from the configuration file are used.
	PublisherID string `toml:"publisher_id"`
	ExtensionID string `toml:"extension_id"`
	// OrganizationBaseURL is joined with the organization name to get the
	// organization url, e.g. https://tfs.example.com/tfs for Azure
	// DevOps Server.
	OrganizationBaseURL string `toml:"organization_base_url"`
	WebhookEndpoint     string `toml:"webhook_endpoint"`
}

// UseExtensionData returns true if policies are read from extension data
// documents.
func (a *AzureDevOps) UseExtensionData() bool {
	return a.PublisherID != "" && a.ExtensionID != ""
}

type JWT struct {
	SigningKey  string        `toml:"signing_key"`
	Issuer      string        `toml:"issuer"`
	ValidityRaw string        `toml:"validity"`
	Validity    time.Duration `toml:"-"`
}

type Github struct {
	APIToken        string `toml:"api_token"`
	WebhookSecret   string `toml:"webhook_secret"`
	WebhookEndpoint string `toml:"webhook_endpoint"`
}

// Enabled returns true if events from github are processed.
func (g *Github) Enabled() bool {
	return g.APIToken != "" && g.WebhookEndpoint != ""
}

type Monitor struct {
	InitialDelayRaw string        `toml:"initial_delay"`
	InitialDelay    time.Duration `toml:"-"`
	IntervalRaw     string        `toml:"interval"`
	Interval        time.Duration `toml:"-"`
	ItemTimeoutRaw  string        `toml:"item_timeout"`
	ItemTimeout     time.Duration `toml:"-"`
	MaxItemsPerTick int           `toml:"max_items_per_tick"`
}

type Webhook struct {
	// FilterQuery is a jq expression, events for which it does not
	// evaluate to true are ignored.
	FilterQuery string `toml:"filter_query"`
}

// Policy is a statically configured merge policy.
type Policy struct {
	Organization string    `toml:"organization"`
	RepositoryID string    `toml:"repository_id"`
	Strategy     string    `toml:"strategy"`
	Source       string    `toml:"source"`
	Target       string    `toml:"target"`
	CreatedAt    time.Time `toml:"created_at"`
}

// Load reads the configuration, applies default values and validates it.
func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.applyDefaults()

	if err := result.validate(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(r)
}

func setDefault(val *string, def string) {
	if *val == "" {
		*val = def
	}
}

func (r *Config) applyDefaults() {
	setDefault(&r.LogFormat, DefaultLogFormat)
	setDefault(&r.LogTimeKey, DefaultLogTimeKey)
	setDefault(&r.LogLevel, DefaultLogLevel)
	setDefault(&r.AzureDevOps.WebhookEndpoint, DefaultAzureWebhookURL)
	setDefault(&r.AzureDevOps.OrganizationBaseURL, DefaultOrganizationBaseURL)
	setDefault(&r.Github.WebhookEndpoint, DefaultGithubWebhookURL)
	setDefault(&r.JWT.ValidityRaw, DefaultJWTValidity)
	setDefault(&r.Monitor.InitialDelayRaw, DefaultMonitorInitialDelay)
	setDefault(&r.Monitor.IntervalRaw, DefaultMonitorInterval)
	setDefault(&r.Monitor.ItemTimeoutRaw, DefaultMonitorItemTimeout)
}

func parseDuration(field, val string, minimum time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, boterr.NewConfigError(field, err)
	}

	if d < minimum {
		return 0, boterr.NewConfigError(field, fmt.Errorf("must be >=%s", minimum))
	}

	return d, nil
}

func (r *Config) validate() error {
	var err error

	if r.HTTPListenAddr == "" && r.HTTPSListenAddr == "" {
		return boterr.NewConfigError("http_server_listen_addr", errors.New("http_server_listen_addr or https_server_listen_addr must be set"))
	}

	if r.HTTPSListenAddr != "" && (r.HTTPSCertFile == "" || r.HTTPSKeyFile == "") {
		return boterr.NewConfigError("https_ssl_cert_file", errors.New("https_ssl_cert_file and https_ssl_key_file must be set when https is enabled"))
	}

	switch r.LogFormat {
	case "logfmt", "console", "json":
	default:
		return boterr.NewConfigError("log_format", fmt.Errorf("unsupported value %q", r.LogFormat))
	}

	if r.JWT.SigningKey == "" {
		return boterr.NewConfigError("jwt.signing_key", errors.New("must be set"))
	}

	if r.JWT.Validity, err = parseDuration("jwt.validity", r.JWT.ValidityRaw, time.Second); err != nil {
		return err
	}

	if r.Monitor.InitialDelay, err = parseDuration("monitor.initial_delay", r.Monitor.InitialDelayRaw, 0); err != nil {
		return err
	}

	if r.Monitor.Interval, err = parseDuration("monitor.interval", r.Monitor.IntervalRaw, time.Millisecond); err != nil {
		return err
	}

	if r.Monitor.ItemTimeout, err = parseDuration("monitor.item_timeout", r.Monitor.ItemTimeoutRaw, 0); err != nil {
		return err
	}

	if r.Monitor.MaxItemsPerTick < 0 {
		return boterr.NewConfigError("monitor.max_items_per_tick", errors.New("must be >=0"))
	}

	if r.AzureDevOps.WebhookEndpoint == r.Github.WebhookEndpoint && r.Github.Enabled() {
		return boterr.NewConfigError("github.webhook_endpoint", errors.New("must differ from azure_devops.webhook_endpoint"))
	}

	for i, p := range r.Policies {
		if p.RepositoryID == "" {
			return boterr.NewConfigError(fmt.Sprintf("policy[%d].repository_id", i), errors.New("must be set"))
		}

		if p.Strategy == "" {
			return boterr.NewConfigError(fmt.Sprintf("policy[%d].strategy", i), errors.New("must be set"))
		}
	}

	return nil
}
