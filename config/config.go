package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/semihalev/dnsredir/rules"
	"github.com/semihalev/zlog/v2"
)

const configver = "1.0.0"

// Default upstream resolvers.
const (
	PublicDNS  = "8.8.8.8"
	PublicDNS6 = "::ffff:" + PublicDNS
)

// ErrBadConfigValue is returned by Validate. It is fatal at startup.
var ErrBadConfigValue = errors.New("bad config value")

// Config type
type Config struct {
	Version         string
	Bind            string
	Port            int
	IPv6            bool `toml:"ipv6"`
	Upstream        string
	UpstreamPort    int
	TTL             uint32 `toml:"ttl"`
	Rules           []string
	Timeout         Duration
	Workers         int
	AccessList      []string
	ClientRateLimit int
	AccessLog       string
	LogLevel        string
	API             string `toml:"api"`

	sVersion string
}

// ServerVersion return current server version
func (c *Config) ServerVersion() string {
	return c.sVersion
}

// Duration type
type Duration struct {
	time.Duration
}

// UnmarshalText for duration type
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText for duration type
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Version:      configver,
		Port:         53,
		UpstreamPort: 53,
		TTL:          30,
		Timeout:      Duration{30 * time.Second},
		Workers:      1,
		AccessList:   []string{"0.0.0.0/0", "::0/0"},
		LogLevel:     "info",
	}
}

// BindAddr returns the host:port the server socket binds to.
func (c *Config) BindAddr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Network returns the UDP network name for the server socket.
func (c *Config) Network() string {
	if c.IPv6 {
		return "udp6"
	}
	return "udp"
}

// UpstreamAddr returns the host:port queries are forwarded to.
func (c *Config) UpstreamAddr() string {
	upstream := c.Upstream
	if upstream == "" {
		upstream = PublicDNS
		if c.IPv6 {
			upstream = PublicDNS6
		}
	}

	return net.JoinHostPort(upstream, strconv.Itoa(c.UpstreamPort))
}

// Validate checks every value that could only fail at runtime otherwise.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrBadConfigValue, c.Port)
	}

	if c.UpstreamPort <= 0 || c.UpstreamPort > 65535 {
		return fmt.Errorf("%w: upstream port %d", ErrBadConfigValue, c.UpstreamPort)
	}

	if c.Upstream != "" && net.ParseIP(c.Upstream) == nil {
		return fmt.Errorf("%w: upstream %q is not an IP address", ErrBadConfigValue, c.Upstream)
	}

	if c.Bind != "" && net.ParseIP(c.Bind) == nil {
		return fmt.Errorf("%w: bind %q is not an IP address", ErrBadConfigValue, c.Bind)
	}

	if c.Timeout.Duration < 0 {
		return fmt.Errorf("%w: timeout %s", ErrBadConfigValue, c.Timeout.Duration)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrBadConfigValue, c.Workers)
	}

	if c.ClientRateLimit < 0 {
		return fmt.Errorf("%w: clientratelimit %d", ErrBadConfigValue, c.ClientRateLimit)
	}

	for _, cidr := range c.AccessList {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("%w: accesslist: %w", ErrBadConfigValue, err)
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: loglevel %q", ErrBadConfigValue, c.LogLevel)
	}

	if _, err := rules.New(c.Rules); err != nil {
		return fmt.Errorf("%w: %w", ErrBadConfigValue, err)
	}

	return nil
}

var defaultConfig = `
# Config version, config and build versions can be different.
version = "%s"

# Address to bind to, left blank for any address
bind = ""

# Port to listen on
port = 53

# Use an IPv6 server socket. The default upstream becomes the IPv4-mapped
# address of the public resolver.
ipv6 = false

# Upstream DNS server for everything not answered locally, left blank for %s
upstream = ""

# Port of the upstream DNS server
upstreamport = 53

# TTL in seconds for locally answered records
ttl = 30

# Locally answered names as type:name:value. The name is a regular expression
# matched against the whole query name, including the trailing dot.
# Only A records are supported.
# rules = [
#	"A:host\\.example\\.:10.0.0.5",
#	"A:.*\\.lan\\.:192.168.1.1"
# ]
rules = [
]

# How long a forwarded query waits for the upstream response
timeout = "30s"

# Number of datagram workers, 1 handles every datagram in order on the receive loop
workers = 1

# Which clients allowed to make queries
accesslist = [
"0.0.0.0/0",
"::0/0"
]

# Client ip address based ratelimit per minute, 0 for disabled
clientratelimit = 0

# The location of access log file, left blank for disabled.
# accesslog = ""

# What kind of information should be logged, Log verbosity level [debug,info,warn,error]
loglevel = "info"

# Address to bind to for the http API server, left blank for disabled
# api = "127.0.0.1:8080"
`

// Load loads the given config file over the defaults, generating a
// commented default file first when it does not exist.
func Load(cfgfile, version string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(cfgfile); os.IsNotExist(err) {
		if err := generateConfig(cfgfile); err != nil {
			return nil, err
		}
	}

	zlog.Info("Loading config file", "path", cfgfile)

	if _, err := toml.DecodeFile(cfgfile, config); err != nil {
		return nil, fmt.Errorf("could not load config: %s", err)
	}

	if config.Version != configver {
		zlog.Warn("Config file is out of version, you can generate new one and check the changes.")
	}

	config.sVersion = version

	return config, nil
}

// New returns the defaults without reading a file.
func New(version string) *Config {
	config := Default()
	config.sVersion = version

	return config
}

func generateConfig(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %s", err)
	}

	defer func() {
		err := output.Close()
		if err != nil {
			zlog.Warn("Config generation failed while file closing", "error", err.Error())
		}
	}()

	r := strings.NewReader(fmt.Sprintf(defaultConfig, configver, PublicDNS))
	if _, err := io.Copy(output, r); err != nil {
		return fmt.Errorf("could not copy default config: %s", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		zlog.Info("Default config file generated", "config", abs)
	}

	return nil
}
