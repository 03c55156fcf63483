package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Pulse    PulseConfig    `yaml:"pulse"`
	Notify   NotifyConfig   `yaml:"notify"`
	Run      RunConfig      `yaml:"run"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type PulseConfig struct {
	URL string `yaml:"url"`
}

type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Token      string `yaml:"token"`
}

type RunConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"` // 0 = manual triggers only
	Workers         int `yaml:"workers"`
	WatchlistLimit  int `yaml:"watchlist_limit"`
}

type ScoringConfig struct {
	ListedWeights   ChannelWeights    `yaml:"listed_weights"`
	UnlistedWeights ChannelWeights    `yaml:"unlisted_weights"`
	RatioWeights    RatioWeights      `yaml:"ratio_weights"`
	FinancialSpread float64           `yaml:"financial_spread"`
	TrendDelta      float64           `yaml:"trend_delta"`
	Grade           GradeThresholds   `yaml:"grade"`
	Propagation     PropagationConfig `yaml:"propagation"`
	Alerts          AlertThresholds   `yaml:"alerts"`
}

// ChannelWeights is the composite weight profile for one customer regime.
// The unlisted profile carries a zero market weight.
type ChannelWeights struct {
	Transaction    float64 `yaml:"transaction"`
	PublicRegistry float64 `yaml:"public_registry"`
	Market         float64 `yaml:"market"`
	News           float64 `yaml:"news"`
	SupplyChain    float64 `yaml:"supply_chain"`
	Financial      float64 `yaml:"financial"`
}

func (w ChannelWeights) sum() float64 {
	return w.Transaction + w.PublicRegistry + w.Market + w.News + w.SupplyChain + w.Financial
}

// RatioWeights weights the five financial ratios inside the financial
// channel. Must sum to 1.
type RatioWeights struct {
	Leverage         float64 `yaml:"leverage"`
	Liquidity        float64 `yaml:"liquidity"`
	InterestCoverage float64 `yaml:"interest_coverage"`
	OperatingMargin  float64 `yaml:"operating_margin"`
	AssetTurnover    float64 `yaml:"asset_turnover"`
}

func (w RatioWeights) sum() float64 {
	return w.Leverage + w.Liquidity + w.InterestCoverage + w.OperatingMargin + w.AssetTurnover
}

// GradeThresholds holds the lower bound of each grade band above CRITICAL.
type GradeThresholds struct {
	NormalMin  float64 `yaml:"normal_min"`
	WatchMin   float64 `yaml:"watch_min"`
	WarningMin float64 `yaml:"warning_min"`
}

type PropagationConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
}

// AlertThresholds are the per-channel breach levels evaluated each run.
type AlertThresholds struct {
	UtilizationMax       float64 `yaml:"utilization_max"`
	PaymentDelayMaxDays  float64 `yaml:"payment_delay_max_days"`
	OverdraftMax         float64 `yaml:"overdraft_max"`
	DistanceToDefaultMin float64 `yaml:"distance_to_default_min"`
	CDSSpreadMaxBps      float64 `yaml:"cds_spread_max_bps"`
	ImpliedPDMax         float64 `yaml:"implied_pd_max"`
	SentimentMin         float64 `yaml:"sentiment_min"`
	NegativeRatioMax     float64 `yaml:"negative_ratio_max"`
	SevereEventsMin      int     `yaml:"severe_events_min"`
	ChainPDMax           float64 `yaml:"chain_pd_max"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) RunInterval() time.Duration {
	return time.Duration(c.Run.IntervalMinutes) * time.Minute
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Pulse: PulseConfig{
			URL: "nats://localhost:4222",
		},
		Run: RunConfig{
			IntervalMinutes: 0,
			Workers:         4,
			WatchlistLimit:  20,
		},
		Scoring: ScoringConfig{
			ListedWeights: ChannelWeights{
				Transaction:    0.25,
				PublicRegistry: 0.15,
				Market:         0.15,
				News:           0.15,
				SupplyChain:    0.15,
				Financial:      0.15,
			},
			UnlistedWeights: ChannelWeights{
				Transaction:    0.30,
				PublicRegistry: 0.20,
				News:           0.20,
				SupplyChain:    0.15,
				Financial:      0.15,
			},
			RatioWeights: RatioWeights{
				Leverage:         0.30,
				Liquidity:        0.20,
				InterestCoverage: 0.20,
				OperatingMargin:  0.15,
				AssetTurnover:    0.15,
			},
			FinancialSpread: 15,
			TrendDelta:      5,
			Grade: GradeThresholds{
				NormalMin:  75,
				WatchMin:   55,
				WarningMin: 35,
			},
			Propagation: PropagationConfig{
				Tolerance:     1e-5,
				MaxIterations: 50,
			},
			Alerts: AlertThresholds{
				UtilizationMax:       0.8,
				PaymentDelayMaxDays:  7,
				OverdraftMax:         2,
				DistanceToDefaultMin: 2.0,
				CDSSpreadMaxBps:      200,
				ImpliedPDMax:         0.1,
				SentimentMin:         -0.3,
				NegativeRatioMax:     0.5,
				SevereEventsMin:      1,
				ChainPDMax:           0.2,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Validate checks every numeric knob the engine depends on. Runs once at
// startup; the scorers and aggregator trust these values afterwards.
func (c *Config) Validate() error {
	if s := c.Scoring.ListedWeights.sum(); math.Abs(s-1.0) > 0.001 {
		return fmt.Errorf("listed channel weights sum to %.4f, must sum to 1.0", s)
	}
	if s := c.Scoring.UnlistedWeights.sum(); math.Abs(s-1.0) > 0.001 {
		return fmt.Errorf("unlisted channel weights sum to %.4f, must sum to 1.0", s)
	}
	if c.Scoring.UnlistedWeights.Market != 0 {
		return fmt.Errorf("unlisted profile carries market weight %.4f, channel is structurally excluded",
			c.Scoring.UnlistedWeights.Market)
	}
	if s := c.Scoring.RatioWeights.sum(); math.Abs(s-1.0) > 0.001 {
		return fmt.Errorf("financial ratio weights sum to %.4f, must sum to 1.0", s)
	}
	g := c.Scoring.Grade
	if !(g.NormalMin > g.WatchMin && g.WatchMin > g.WarningMin && g.WarningMin > 0) || g.NormalMin > 100 {
		return fmt.Errorf("grade thresholds must descend within (0,100]: normal %.1f, watch %.1f, warning %.1f",
			g.NormalMin, g.WatchMin, g.WarningMin)
	}
	if c.Scoring.TrendDelta <= 0 {
		return fmt.Errorf("trend delta %.2f must be positive", c.Scoring.TrendDelta)
	}
	if c.Scoring.Propagation.Tolerance <= 0 {
		return fmt.Errorf("propagation tolerance %g must be positive", c.Scoring.Propagation.Tolerance)
	}
	if c.Scoring.Propagation.MaxIterations < 1 {
		return fmt.Errorf("propagation iteration cap %d must be at least 1", c.Scoring.Propagation.MaxIterations)
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("run workers %d must be at least 1", c.Run.Workers)
	}
	if c.Run.WatchlistLimit < 1 {
		return fmt.Errorf("watchlist limit %d must be at least 1", c.Run.WatchlistLimit)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BEACON_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("BEACON_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("BEACON_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("BEACON_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("BEACON_PULSE_URL"); v != "" {
		cfg.Pulse.URL = v
	}
	if v := os.Getenv("BEACON_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("BEACON_WEBHOOK_TOKEN"); v != "" {
		cfg.Notify.Token = v
	}
	if v := os.Getenv("BEACON_RUN_INTERVAL_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.IntervalMinutes = n
		}
	}
	if v := os.Getenv("BEACON_RUN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.Workers = n
		}
	}
	if v := os.Getenv("BEACON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BEACON_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
