// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryan-buckman/binsearch/internal/opml"
)

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	Provider  ProviderConfig `yaml:"provider"`
	Cache     CacheConfig    `yaml:"cache"`
	HTTP      HTTPConfig     `yaml:"http"`
	RabbitMQ  RabbitMQConfig `yaml:"rabbitmq"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig selects the cache store. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// ProviderConfig describes the upstream indexer.
type ProviderConfig struct {
	Name          string   `yaml:"name"`
	BaseURL       string   `yaml:"base_url"`
	SearchPath    string   `yaml:"search_path"`
	RSSPath       string   `yaml:"rss_path"`
	Groups        []int    `yaml:"groups"`
	Categories    []string `yaml:"categories"`
	MinSize       int      `yaml:"min_size"`
	MaxResults    int      `yaml:"max_results"`
	RSSMaxResults int      `yaml:"rss_max_results"`

	// CategoriesOPML names an OPML file whose feed URLs supply Categories
	// through their "g" parameter. Ignored when Categories is set.
	CategoriesOPML string `yaml:"categories_opml"`
}

// SearchURL is the on-demand HTML search endpoint.
func (p ProviderConfig) SearchURL() string {
	return p.base() + "/" + strings.TrimLeft(p.SearchPath, "/")
}

// RSSURL is the feed endpoint.
func (p ProviderConfig) RSSURL() string {
	return p.base() + "/" + strings.TrimLeft(p.RSSPath, "/")
}

// DownloadURL embeds a result identifier into the NZB download template.
func (p ProviderConfig) DownloadURL(id string) string {
	return fmt.Sprintf("%s/?action=nzb&%s=1", p.base(), id)
}

func (p ProviderConfig) base() string {
	return strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
}

type CacheConfig struct {
	// MinInterval is the shortest time between two feed refreshes.
	MinInterval  time.Duration `yaml:"min_interval"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RabbitMQConfig is optional; an empty URL disables refresh notifications.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

// Load reads path, expands ${VAR} references and fills defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if p := &cfg.Provider; len(p.Categories) == 0 && p.CategoriesOPML != "" {
		cats, err := categoriesFromOPML(p.CategoriesOPML)
		if err != nil {
			return nil, err
		}
		p.Categories = cats
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func categoriesFromOPML(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open categories opml: %w", err)
	}
	defer f.Close()

	feeds, err := opml.Parse(f)
	if err != nil {
		return nil, err
	}
	cats := opml.Categories(feeds, "g")
	if len(cats) == 0 {
		return nil, fmt.Errorf("no categories in %s", path)
	}
	return cats, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "0.0.0.0:8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "binsearch.db"
	}
	p := &c.Provider
	if p.Name == "" {
		p.Name = "binsearch"
	}
	if p.BaseURL == "" {
		p.BaseURL = "https://www.binsearch.info"
	}
	if p.SearchPath == "" {
		p.SearchPath = "index.php"
	}
	if p.RSSPath == "" {
		p.RSSPath = "rss.php"
	}
	if len(p.Groups) == 0 {
		// 1 = most popular groups, 2 = the other groups.
		p.Groups = []int{1, 2}
	}
	if len(p.Categories) == 0 {
		p.Categories = []string{
			"alt.binaries.hdtv",
			"alt.binaries.hdtv.x264",
			"alt.binaries.tv",
			"alt.binaries.tvseries",
		}
	}
	if p.MinSize == 0 {
		p.MinSize = 20
	}
	if p.MaxResults == 0 {
		p.MaxResults = 250
	}
	if p.RSSMaxResults == 0 {
		p.RSSMaxResults = 50
	}
	if c.Cache.MinInterval == 0 {
		c.Cache.MinInterval = 30 * time.Minute
	}
	if c.Cache.PollInterval == 0 {
		c.Cache.PollInterval = c.Cache.MinInterval
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 30 * time.Second
	}
	if c.RabbitMQ.URL != "" {
		if c.RabbitMQ.Exchange == "" {
			c.RabbitMQ.Exchange = "binsearch"
		}
		if c.RabbitMQ.RoutingKey == "" {
			c.RabbitMQ.RoutingKey = "cache.refreshed"
		}
		if c.RabbitMQ.QueueName == "" {
			c.RabbitMQ.QueueName = "binsearch_cache"
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate checks settings that have no sensible default.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	if c.Cache.MinInterval < 0 || c.Cache.PollInterval < 0 {
		return errors.New("cache intervals must be positive")
	}
	if c.Provider.MinSize < 0 || c.Provider.MaxResults < 0 || c.Provider.RSSMaxResults < 0 {
		return errors.New("provider limits must not be negative")
	}
	for _, g := range c.Provider.Groups {
		if g <= 0 {
			return fmt.Errorf("invalid provider group %d", g)
		}
	}
	return nil
}
