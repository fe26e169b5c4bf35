package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     Server     `yaml:"server"`
	Client     Client     `yaml:"client"`
	Downloader Downloader `yaml:"downloader"`
	Log        Log        `yaml:"log"`
}

func (c *Config) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("server", c.Server.ToDict()).
		Dict("client", c.Client.ToDict()).
		Dict("downloader", c.Downloader.ToDict()).
		Dict("log", c.Log.ToDict())
}

func (c *Config) setDefaults() {
	c.Server.setDefaults()
	c.Client.setDefaults()
	c.Downloader.setDefaults()
	c.Log.setDefaults()
}

func (c *Config) validate() error {
	if err := c.Server.validate(); nil != err {
		return fmt.Errorf("server config validation failed: %v", err)
	}

	if err := c.Client.validate(); nil != err {
		return fmt.Errorf("client config validation failed: %v", err)
	}

	if err := c.Downloader.validate(); nil != err {
		return fmt.Errorf("downloader config validation failed: %v", err)
	}

	if err := c.Log.validate(); nil != err {
		return fmt.Errorf("log config validation failed: %v", err)
	}

	return nil
}

type Server struct {
	ListenAddr    string   `yaml:"listen_addr"`
	TempDir       string   `yaml:"temp_dir"`
	TokenTTL      Duration `yaml:"token_ttl"`
	SearchTTL     Duration `yaml:"search_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"`
	SweepMaxAge   Duration `yaml:"sweep_max_age"`
	RateEvery     Duration `yaml:"rate_every"`
	RateBurst     int      `yaml:"rate_burst"`
}

func (c *Server) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("listen_addr", c.ListenAddr).
		Str("temp_dir", c.TempDir).
		Str("token_ttl", c.TokenTTL.String()).
		Str("search_ttl", c.SearchTTL.String()).
		Str("sweep_interval", c.SweepInterval.String()).
		Str("sweep_max_age", c.SweepMaxAge.String()).
		Str("rate_every", c.RateEvery.String()).
		Int("rate_burst", c.RateBurst)
}

func (c *Server) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":3000"
	}

	if c.TempDir == "" {
		c.TempDir = "./temp"
	}

	// Spotify client-credential tokens live for an hour. The cache TTL stays
	// under that so a token is never handed out in its last moments.
	if c.TokenTTL.Duration == 0 {
		c.TokenTTL.Duration = 50 * time.Minute
	}

	if c.SearchTTL.Duration == 0 {
		c.SearchTTL.Duration = 1 * time.Hour
	}

	if c.SweepInterval.Duration == 0 {
		c.SweepInterval.Duration = 1 * time.Hour
	}

	if c.SweepMaxAge.Duration == 0 {
		c.SweepMaxAge.Duration = 1 * time.Hour
	}

	if c.RateEvery.Duration == 0 {
		c.RateEvery.Duration = 100 * time.Millisecond
	}

	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
}

func (c *Server) validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); nil != err {
		return fmt.Errorf("listen_addr must be a host:port pair: %v", err)
	}

	if c.TokenTTL.Duration < 0 {
		return errors.New("token_ttl must be greater than 0")
	}

	if c.SearchTTL.Duration < 0 {
		return errors.New("search_ttl must be greater than 0")
	}

	if c.SweepInterval.Duration < 0 {
		return errors.New("sweep_interval must be greater than 0")
	}

	if c.SweepMaxAge.Duration < 0 {
		return errors.New("sweep_max_age must be greater than 0")
	}

	if c.RateBurst < 0 {
		return errors.New("rate_burst must be greater than 0")
	}

	return nil
}

type Client struct {
	RelayURL           string   `yaml:"relay_url"`
	StateDir           string   `yaml:"state_dir"`
	DownloadsDir       string   `yaml:"downloads_dir"`
	TrackDelay         Duration `yaml:"track_delay"`
	ProgressResetDelay Duration `yaml:"progress_reset_delay"`
	TokenTTL           Duration `yaml:"token_ttl"`
}

func (c *Client) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("relay_url", c.RelayURL).
		Str("state_dir", c.StateDir).
		Str("downloads_dir", c.DownloadsDir).
		Str("track_delay", c.TrackDelay.String()).
		Str("progress_reset_delay", c.ProgressResetDelay.String()).
		Str("token_ttl", c.TokenTTL.String())
}

func (c *Client) setDefaults() {
	if c.RelayURL == "" {
		c.RelayURL = "http://localhost:3000"
	}

	if c.StateDir == "" {
		c.StateDir = "./state"
	}

	if c.DownloadsDir == "" {
		c.DownloadsDir = "./downloads"
	}

	if c.TrackDelay.Duration == 0 {
		c.TrackDelay.Duration = 3 * time.Second
	}

	if c.ProgressResetDelay.Duration == 0 {
		c.ProgressResetDelay.Duration = 3 * time.Second
	}

	if c.TokenTTL.Duration == 0 {
		c.TokenTTL.Duration = 50 * time.Minute
	}
}

func (c *Client) validate() error {
	if c.RelayURL == "" {
		return errors.New("relay_url is required")
	}

	if c.TrackDelay.Duration < 0 {
		return errors.New("track_delay must be greater than 0")
	}

	if c.ProgressResetDelay.Duration < 0 {
		return errors.New("progress_reset_delay must be greater than 0")
	}

	if c.TokenTTL.Duration < 0 {
		return errors.New("token_ttl must be greater than 0")
	}

	return nil
}

type Downloader struct {
	Timeouts DownloaderTimeouts `yaml:"timeouts"`
}

func (c *Downloader) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("timeouts", c.Timeouts.ToDict())
}

func (c *Downloader) setDefaults() {
	c.Timeouts.setDefaults()
}

func (c *Downloader) validate() error {
	if err := c.Timeouts.validate(); nil != err {
		return fmt.Errorf("timeouts config validation failed: %v", err)
	}

	return nil
}

type DownloaderTimeouts struct {
	TokenExchange Duration `yaml:"token_exchange"`
	GetCollection Duration `yaml:"get_collection"`
	SearchCatalog Duration `yaml:"search_catalog"`
	SearchVideo   Duration `yaml:"search_video"`
	FetchAudio    Duration `yaml:"fetch_audio"`
	FetchCover    Duration `yaml:"fetch_cover"`
}

func (c *DownloaderTimeouts) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("token_exchange", c.TokenExchange.String()).
		Str("get_collection", c.GetCollection.String()).
		Str("search_catalog", c.SearchCatalog.String()).
		Str("search_video", c.SearchVideo.String()).
		Str("fetch_audio", c.FetchAudio.String()).
		Str("fetch_cover", c.FetchCover.String())
}

func (c *DownloaderTimeouts) setDefaults() {
	if c.TokenExchange.Duration == 0 {
		c.TokenExchange.Duration = 10 * time.Second
	}

	if c.GetCollection.Duration == 0 {
		c.GetCollection.Duration = 15 * time.Second
	}

	if c.SearchCatalog.Duration == 0 {
		c.SearchCatalog.Duration = 15 * time.Second
	}

	if c.SearchVideo.Duration == 0 {
		c.SearchVideo.Duration = 30 * time.Second
	}

	if c.FetchAudio.Duration == 0 {
		c.FetchAudio.Duration = 5 * time.Minute
	}

	if c.FetchCover.Duration == 0 {
		c.FetchCover.Duration = 10 * time.Second
	}
}

func (c *DownloaderTimeouts) validate() error {
	if c.TokenExchange.Duration < 0 {
		return errors.New("token_exchange must be greater than 0")
	}

	if c.GetCollection.Duration < 0 {
		return errors.New("get_collection must be greater than 0")
	}

	if c.SearchCatalog.Duration < 0 {
		return errors.New("search_catalog must be greater than 0")
	}

	if c.SearchVideo.Duration < 0 {
		return errors.New("search_video must be greater than 0")
	}

	if c.FetchAudio.Duration < 0 {
		return errors.New("fetch_audio must be greater than 0")
	}

	if c.FetchCover.Duration < 0 {
		return errors.New("fetch_cover must be greater than 0")
	}

	return nil
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Log) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("level", c.Level).
		Str("format", c.Format)
}

func (c *Log) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "auto"
	}
}

func (c *Log) validate() error {
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}, c.Level) {
		return fmt.Errorf(
			"level must be one of: trace, debug, info, warn, error, fatal, panic, got: %s",
			c.Level,
		)
	}

	if !slices.Contains([]string{"auto", "json", "pretty"}, c.Format) {
		return fmt.Errorf("format must be 'auto', 'json' or 'pretty', got: %s", c.Format)
	}

	return nil
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); nil != err {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	parsed, err := time.ParseDuration(s)
	if nil != err {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	d.Duration = parsed

	return nil
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(lo.Ternary(len(filename) > 0, filename, "config.yaml"))
	if nil != err {
		if errors.Is(err, os.ErrNotExist) && filename == "" {
			var conf Config
			conf.setDefaults()

			return &conf, nil
		}

		return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); nil != err {
		return nil, fmt.Errorf("failed to parse config file %s: %v", filename, err)
	}

	conf.setDefaults()

	if err := conf.validate(); nil != err {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return &conf, nil
}
