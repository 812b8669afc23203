package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/vrischmann/envconfig"
	"gopkg.in/yaml.v3"

	"gatewayipsync/client/httpretry"
)

const (
	ModePoller     = "poller"
	ModeUpdater    = "updater"
	ModeStandalone = "standalone"

	DiscoveryIPEcho   = "ipecho"
	DiscoveryRouterOS = "routeros"

	DefaultSecretsFile = "./secrets.yaml"
)

type RouterOSConfig struct {
	Host      string `yaml:"host"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Interface string `yaml:"interface"`
	IPv6      bool   `yaml:"ipv6"`
}

type Config struct {
	Mode        string `yaml:"mode"`
	LoggerLevel string `yaml:"logger_level"`

	SubscriptionID     string `yaml:"subscription_id"`
	ResourceGroup      string `yaml:"resource_group"`
	LocalGatewayName   string `yaml:"local_gateway_name"`
	ManagementEndpoint string `yaml:"management_endpoint"`
	ListenAddr         string `yaml:"listen_addr"`

	FunctionURI    string        `yaml:"function_uri"`
	Discovery      string        `yaml:"discovery"`
	IPEchoURI      string        `yaml:"ip_echo_uri"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ReportAttempts uint          `yaml:"report_attempts"`
	ReportDelay    time.Duration `yaml:"report_delay"`

	RouterOS  RouterOSConfig            `yaml:"ros"`
	DNSMirror map[string]map[string]any `yaml:"dns_mirror"`
}

func defaults() Config {
	return Config{
		Mode:           ModePoller,
		LoggerLevel:    "info",
		ListenAddr:     ":8080",
		Discovery:      DiscoveryIPEcho,
		PollInterval:   10 * time.Minute,
		ReportAttempts: httpretry.DefaultAttempts,
		ReportDelay:    httpretry.DefaultDelay,
		RouterOS:       RouterOSConfig{Interface: "WAN"},
	}
}

// envConfig mirrors the scalar settings that may come from the environment.
type envConfig struct {
	SecretsFile string `envconfig:"SECRETS_FILE"`
	Mode        string `envconfig:"MODE"`
	LoggerLevel string `envconfig:"LOGGER_LEVEL"`

	SubscriptionID     string `envconfig:"SUBSCRIPTION_ID"`
	ResourceGroup      string `envconfig:"RESOURCE_GROUP"`
	LocalGatewayName   string `envconfig:"LOCAL_GATEWAY_NAME"`
	ManagementEndpoint string `envconfig:"MANAGEMENT_ENDPOINT"`
	ListenAddr         string `envconfig:"LISTEN_ADDR"`

	FunctionURI    string        `envconfig:"FUNCTION_URI"`
	Discovery      string        `envconfig:"DISCOVERY"`
	IPEchoURI      string        `envconfig:"IP_ECHO_URI"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL"`
	ReportAttempts uint          `envconfig:"REPORT_ATTEMPTS"`
	ReportDelay    time.Duration `envconfig:"REPORT_DELAY"`

	RouterOSAddr      string `envconfig:"ROS_ADDR"`
	RouterOSUser      string `envconfig:"ROS_USERNAME"`
	RouterOSPassword  string `envconfig:"ROS_PASSWORD"`
	RouterOSInterface string `envconfig:"ROS_INTERFACE"`

	// Names used by the hosted function app settings. The upper snake case
	// names above win when both are set.
	SubscriptionIDKey   string `envconfig:"SubscriptionId"`
	ResourceGroupKey    string `envconfig:"ResourceGroup"`
	LocalGatewayNameKey string `envconfig:"LocalGatewayName"`
	FunctionURIKey      string `envconfig:"FunctionUri"`
}

// Load resolves the configuration from, in increasing precedence, the yaml
// secrets file, the environment and the command line.
func Load(args []string) (*Config, error) {
	var env envConfig
	if err := envconfig.InitWithOptions(&env, envconfig.Options{AllOptional: true}); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	conf := defaults()
	flags, fset, err := parseFlags(args)
	if err != nil {
		return nil, err
	}

	secretsFile := DefaultSecretsFile
	if env.SecretsFile != "" {
		secretsFile = env.SecretsFile
	}
	if flags.secretsFile != "" {
		secretsFile = flags.secretsFile
	}
	if err := loadSecrets(secretsFile, &conf); err != nil {
		return nil, err
	}

	env.apply(&conf)
	fset.Visit(func(f *flag.Flag) {
		if apply, ok := flags.setters[f.Name]; ok {
			apply(&conf)
		}
	})

	conf.Mode = strings.ToLower(conf.Mode)
	conf.Discovery = strings.ToLower(conf.Discovery)
	return &conf, nil
}

func loadSecrets(path string, conf *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	return nil
}

func (e envConfig) apply(conf *Config) {
	setString(&conf.Mode, e.Mode)
	setString(&conf.LoggerLevel, e.LoggerLevel)
	setString(&conf.SubscriptionID, e.SubscriptionIDKey)
	setString(&conf.ResourceGroup, e.ResourceGroupKey)
	setString(&conf.LocalGatewayName, e.LocalGatewayNameKey)
	setString(&conf.FunctionURI, e.FunctionURIKey)
	setString(&conf.SubscriptionID, e.SubscriptionID)
	setString(&conf.ResourceGroup, e.ResourceGroup)
	setString(&conf.LocalGatewayName, e.LocalGatewayName)
	setString(&conf.ManagementEndpoint, e.ManagementEndpoint)
	setString(&conf.ListenAddr, e.ListenAddr)
	setString(&conf.FunctionURI, e.FunctionURI)
	setString(&conf.Discovery, e.Discovery)
	setString(&conf.IPEchoURI, e.IPEchoURI)
	setString(&conf.RouterOS.Host, e.RouterOSAddr)
	setString(&conf.RouterOS.User, e.RouterOSUser)
	setString(&conf.RouterOS.Password, e.RouterOSPassword)
	setString(&conf.RouterOS.Interface, e.RouterOSInterface)
	if e.PollInterval != 0 {
		conf.PollInterval = e.PollInterval
	}
	if e.ReportAttempts != 0 {
		conf.ReportAttempts = e.ReportAttempts
	}
	if e.ReportDelay != 0 {
		conf.ReportDelay = e.ReportDelay
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

type flagValues struct {
	secretsFile string
	setters     map[string]func(*Config)
}

func parseFlags(args []string) (*flagValues, *flag.FlagSet, error) {
	fset := flag.NewFlagSet("gatewayipsync", flag.ContinueOnError)
	values := &flagValues{setters: make(map[string]func(*Config))}

	str := func(name, usage string, dst func(*Config) *string) {
		v := fset.String(name, "", usage)
		values.setters[name] = func(c *Config) { *dst(c) = *v }
	}
	dur := func(name, usage string, dst func(*Config) *time.Duration) {
		v := fset.Duration(name, 0, usage)
		values.setters[name] = func(c *Config) { *dst(c) = *v }
	}

	fset.StringVar(&values.secretsFile, "secrets", "", "yaml secrets file")
	str("mode", "poller, updater or standalone", func(c *Config) *string { return &c.Mode })
	str("log-level", "error, warn, info or debug", func(c *Config) *string { return &c.LoggerLevel })
	str("subscription-id", "subscription of the local network gateway", func(c *Config) *string { return &c.SubscriptionID })
	str("resource-group", "resource group of the local network gateway", func(c *Config) *string { return &c.ResourceGroup })
	str("local-gateway-name", "local network gateway name", func(c *Config) *string { return &c.LocalGatewayName })
	str("management-endpoint", "azure resource manager endpoint", func(c *Config) *string { return &c.ManagementEndpoint })
	str("listen", "updater listen address", func(c *Config) *string { return &c.ListenAddr })
	str("function-uri", "updater endpoint the poller reports to", func(c *Config) *string { return &c.FunctionURI })
	str("discovery", "ipecho or routeros", func(c *Config) *string { return &c.Discovery })
	str("ip-echo-uri", "public ip echo service", func(c *Config) *string { return &c.IPEchoURI })
	str("rosa", "RouterOS API Address", func(c *Config) *string { return &c.RouterOS.Host })
	str("rosu", "RouterOS API Username", func(c *Config) *string { return &c.RouterOS.User })
	str("rosp", "RouterOS API Password", func(c *Config) *string { return &c.RouterOS.Password })
	str("rosi", "RouterOS Interface", func(c *Config) *string { return &c.RouterOS.Interface })
	dur("i", "poll interval", func(c *Config) *time.Duration { return &c.PollInterval })
	dur("report-delay", "delay between report attempts", func(c *Config) *time.Duration { return &c.ReportDelay })
	attempts := fset.Uint("report-attempts", 0, "report attempts on transient failures")
	values.setters["report-attempts"] = func(c *Config) { c.ReportAttempts = *attempts }

	if err := fset.Parse(args); err != nil {
		return nil, nil, err
	}
	return values, fset, nil
}

// Validate fails on the first setting the configured mode cannot run without.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeUpdater:
		return c.requireIdentity()
	case ModePoller:
		if err := required("FunctionUri", c.FunctionURI); err != nil {
			return err
		}
		return c.requirePolling()
	case ModeStandalone:
		if err := c.requireIdentity(); err != nil {
			return err
		}
		return c.requirePolling()
	}
	return fmt.Errorf("unknown mode %q", c.Mode)
}

func (c *Config) requireIdentity() error {
	if err := required("SubscriptionId", c.SubscriptionID); err != nil {
		return err
	}
	if err := required("ResourceGroup", c.ResourceGroup); err != nil {
		return err
	}
	return required("LocalGatewayName", c.LocalGatewayName)
}

func (c *Config) requirePolling() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	switch c.Discovery {
	case DiscoveryIPEcho:
		return nil
	case DiscoveryRouterOS:
		if err := required("RouterOS Address", c.RouterOS.Host); err != nil {
			return err
		}
		if err := required("RouterOS Username", c.RouterOS.User); err != nil {
			return err
		}
		return required("RouterOS Interface", c.RouterOS.Interface)
	}
	return fmt.Errorf("unknown discovery %q", c.Discovery)
}

func required(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", key)
	}
	return nil
}
