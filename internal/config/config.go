// Package config provides configuration management for the backtest core.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultSizeExponent is the sub-linear market-impact exponent used
	// when costs.slippage.size_exponent is unset.
	defaultSizeExponent = 0.6
	// defaultAvgHoldingDays assumes an intraday position held to the close.
	defaultAvgHoldingDays = 1.0
	// defaultTickSize is the option quote increment.
	defaultTickSize = 0.05
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Risk        RiskConfig        `yaml:"risk"`
	Costs       CostConfig        `yaml:"costs"`
	Regime      RegimeConfig      `yaml:"regime"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Storage     StorageConfig     `yaml:"storage"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // backtest | sim
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// BacktestConfig defines the replay window and simulation parameters.
type BacktestConfig struct {
	Symbol        string  `yaml:"symbol"`
	StartDate     string  `yaml:"start_date"` // YYYY-MM-DD
	EndDate       string  `yaml:"end_date"`   // YYYY-MM-DD
	Seed          int64   `yaml:"seed"`       // seeds all simulated randomness
	TickInterval  string  `yaml:"tick_interval"`
	Contracts     int     `yaml:"contracts"`
	RiskFreeRate  float64 `yaml:"risk_free_rate"`
	DividendYield float64 `yaml:"dividend_yield"`
}

// DeltaBand is an absolute-delta selection band for short strikes.
type DeltaBand struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Midpoint returns the center of the band, the tie-break anchor for
// short-strike selection.
func (b DeltaBand) Midpoint() float64 {
	return (b.Min + b.Max) / 2
}

// StrategyConfig defines spread-construction parameters.
type StrategyConfig struct {
	// RangeBoundBand is applied symmetrically on both sides for
	// range-bound decisions (iron condors).
	RangeBoundBand DeltaBand `yaml:"range_bound_band"`
	// DirectionalBand is applied on one side only for directional
	// decisions.
	DirectionalBand    DeltaBand `yaml:"directional_band"`
	MinWidth           float64   `yaml:"min_width"`
	MaxWidth           float64   `yaml:"max_width"`
	MinCreditPerWidth  float64   `yaml:"min_credit_per_width"`
	EntrySlippageTicks int       `yaml:"entry_slippage_ticks"`
	TickSize           float64   `yaml:"tick_size"`
}

// RiskConfig defines the adaptive daily-loss admission control.
type RiskConfig struct {
	// LossLadder maps consecutive loss days to the allowed daily loss
	// budget; index 0 applies after a green day. Must be strictly
	// decreasing (a reverse-Fibonacci ladder in the reference setup).
	LossLadder []float64 `yaml:"loss_ladder"`
	// WorstCaseSpreadFraction is how much of each leg's quoted spread the
	// worst-case fill concedes (1.0 = full adverse cross).
	WorstCaseSpreadFraction float64 `yaml:"worst_case_spread_fraction"`
	// WorstCaseExtraTicks pads the worst-case fill beyond the quote.
	WorstCaseExtraTicks int `yaml:"worst_case_extra_ticks"`
}

// MaxLossStreak returns the saturation level of the loss-day counter.
func (r RiskConfig) MaxLossStreak() int {
	if len(r.LossLadder) == 0 {
		return 0
	}
	return len(r.LossLadder) - 1
}

// CommissionConfig defines the brokerage fee schedule.
type CommissionConfig struct {
	PerContract       float64      `yaml:"per_contract"`
	PerTrade          float64      `yaml:"per_trade"`
	MultiLegSurcharge float64      `yaml:"multi_leg_surcharge"` // multiplier for >2 legs
	Minimum           float64      `yaml:"minimum"`
	VolumeTiers       []VolumeTier `yaml:"volume_tiers"`
}

// VolumeTier grants a percentage discount at or above a contract count.
type VolumeTier struct {
	MinContracts int     `yaml:"min_contracts"`
	DiscountPct  float64 `yaml:"discount_pct"` // 0.10 = 10% off
}

// SlippageConfig defines the slippage model parameters.
type SlippageConfig struct {
	ImpactCoeff        float64 `yaml:"impact_coeff"`         // per-share $ at 1 contract
	SizeExponent       float64 `yaml:"size_exponent"`        // sub-linear, ~0.6
	TimingCoeff        float64 `yaml:"timing_coeff"`         // scales with realized vol
	VolRegimeThreshold float64 `yaml:"vol_regime_threshold"` // vol-index level
	VolRegimeExtra     float64 `yaml:"vol_regime_extra"`     // per-share $ above threshold
	WideSpreadRatio    float64 `yaml:"wide_spread_ratio"`    // spread/mid trigger
	WideSpreadExtra    float64 `yaml:"wide_spread_extra"`    // per-share $ when triggered
	LatencyMeanMs      int     `yaml:"latency_mean_ms"`
	LatencyJitterMs    int     `yaml:"latency_jitter_ms"`
}

// AssignmentConfig defines early-assignment risk pricing for short legs.
type AssignmentConfig struct {
	FeePerAssignment float64 `yaml:"fee_per_assignment"`
	NotionalFraction float64 `yaml:"notional_fraction"`
	ITMProbability   float64 `yaml:"itm_probability"` // assignment prob when short leg is ITM
	OTMProbability   float64 `yaml:"otm_probability"`
}

// LiquidityConfig penalizes orders that are large relative to open interest.
type LiquidityConfig struct {
	MaxParticipation   float64 `yaml:"max_participation"`    // fraction of leg open interest
	PenaltyPerContract float64 `yaml:"penalty_per_contract"` // $ per contract over the cap
}

// FinancingConfig prices the margin carry of the position.
type FinancingConfig struct {
	DailyRate      float64 `yaml:"daily_rate"`
	AvgHoldingDays float64 `yaml:"avg_holding_days"`
}

// CostConfig defines the execution-cost model.
type CostConfig struct {
	// SpreadCrossFraction is the share of each leg's bid-ask spread paid
	// on entry, before IV and moneyness multipliers.
	SpreadCrossFraction float64          `yaml:"spread_cross_fraction"`
	Commission          CommissionConfig `yaml:"commission"`
	Slippage            SlippageConfig   `yaml:"slippage"`
	Assignment          AssignmentConfig `yaml:"assignment"`
	Liquidity           LiquidityConfig  `yaml:"liquidity"`
	Financing           FinancingConfig  `yaml:"financing"`
}

// RegimeConfig defines the market-regime scoring windows and thresholds.
type RegimeConfig struct {
	OpeningRangeMinutes int     `yaml:"opening_range_minutes"`
	VWAPLookbackBars    int     `yaml:"vwap_lookback_bars"`
	ATRLookbackBars     int     `yaml:"atr_lookback_bars"`
	RecentRangeBars     int     `yaml:"recent_range_bars"`
	CalmATRRatio        float64 `yaml:"calm_atr_ratio"`      // recent range <= ratio*ATR
	ExpansionATRRatio   float64 `yaml:"expansion_atr_ratio"` // recent range >= ratio*ATR
	PreEventWindow      string  `yaml:"pre_event_window"`    // duration, e.g. "30m"
	CloseWindow         string  `yaml:"close_window"`        // no-new-risk window before the bell
	SessionEnd          string  `yaml:"session_end"`         // "HH:MM"
	Timezone            string  `yaml:"timezone"`
}

// DashboardConfig defines the status HTTP server settings.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// StorageConfig defines persistence settings for the risk ledger.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
// Malformed configuration fails fast here, before the pipeline runs.
func (c *Config) Validate() error {
	if c.Environment.Mode != "backtest" && c.Environment.Mode != "sim" {
		return fmt.Errorf("environment.mode must be 'backtest' or 'sim'")
	}

	// Backtest window
	if c.Backtest.Symbol == "" {
		return fmt.Errorf("backtest.symbol is required")
	}
	start, err := time.Parse("2006-01-02", c.Backtest.StartDate)
	if err != nil {
		return fmt.Errorf("backtest.start_date invalid: %w", err)
	}
	end, err := time.Parse("2006-01-02", c.Backtest.EndDate)
	if err != nil {
		return fmt.Errorf("backtest.end_date invalid: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("backtest.end_date (%s) must not precede start_date (%s)",
			c.Backtest.EndDate, c.Backtest.StartDate)
	}
	if _, err := time.ParseDuration(c.Backtest.TickInterval); err != nil {
		return fmt.Errorf("backtest.tick_interval invalid: %w", err)
	}
	if c.Backtest.Contracts <= 0 {
		return fmt.Errorf("backtest.contracts must be > 0")
	}

	// Strategy bands and widths
	if err := validateBand("strategy.range_bound_band", c.Strategy.RangeBoundBand); err != nil {
		return err
	}
	if err := validateBand("strategy.directional_band", c.Strategy.DirectionalBand); err != nil {
		return err
	}
	if c.Strategy.MinWidth <= 0 || c.Strategy.MaxWidth < c.Strategy.MinWidth {
		return fmt.Errorf("strategy width bounds invalid: min=%.2f max=%.2f",
			c.Strategy.MinWidth, c.Strategy.MaxWidth)
	}
	if c.Strategy.MinCreditPerWidth <= 0 || c.Strategy.MinCreditPerWidth >= 1 {
		return fmt.Errorf("strategy.min_credit_per_width must be in (0,1)")
	}
	if c.Strategy.EntrySlippageTicks < 0 {
		return fmt.Errorf("strategy.entry_slippage_ticks must be >= 0")
	}
	if c.Strategy.TickSize == 0 {
		c.Strategy.TickSize = defaultTickSize
	}
	if c.Strategy.TickSize < 0 {
		return fmt.Errorf("strategy.tick_size must be > 0")
	}

	// Loss ladder: non-empty, positive, strictly decreasing
	if len(c.Risk.LossLadder) == 0 {
		return fmt.Errorf("risk.loss_ladder must not be empty")
	}
	for i, v := range c.Risk.LossLadder {
		if v <= 0 {
			return fmt.Errorf("risk.loss_ladder[%d] must be > 0 (got %.2f)", i, v)
		}
		if i > 0 && v >= c.Risk.LossLadder[i-1] {
			return fmt.Errorf("risk.loss_ladder must be strictly decreasing (index %d: %.2f >= %.2f)",
				i, v, c.Risk.LossLadder[i-1])
		}
	}
	if c.Risk.WorstCaseSpreadFraction <= 0 || c.Risk.WorstCaseSpreadFraction > 2 {
		return fmt.Errorf("risk.worst_case_spread_fraction must be in (0,2]")
	}
	if c.Risk.WorstCaseExtraTicks < 0 {
		return fmt.Errorf("risk.worst_case_extra_ticks must be >= 0")
	}

	// Cost model
	if c.Costs.SpreadCrossFraction < 0 || c.Costs.SpreadCrossFraction > 1 {
		return fmt.Errorf("costs.spread_cross_fraction must be in [0,1]")
	}
	if c.Costs.Commission.PerContract < 0 || c.Costs.Commission.PerTrade < 0 {
		return fmt.Errorf("costs.commission fees must be >= 0")
	}
	if c.Costs.Commission.MultiLegSurcharge < 1 {
		return fmt.Errorf("costs.commission.multi_leg_surcharge must be >= 1")
	}
	for i, tier := range c.Costs.Commission.VolumeTiers {
		if tier.MinContracts <= 0 || tier.DiscountPct < 0 || tier.DiscountPct >= 1 {
			return fmt.Errorf("costs.commission.volume_tiers[%d] invalid", i)
		}
		if i > 0 && tier.MinContracts <= c.Costs.Commission.VolumeTiers[i-1].MinContracts {
			return fmt.Errorf("costs.commission.volume_tiers must have increasing min_contracts")
		}
	}
	c.normalizeCostDefaults()
	if c.Costs.Slippage.SizeExponent <= 0 || c.Costs.Slippage.SizeExponent > 1 {
		return fmt.Errorf("costs.slippage.size_exponent must be in (0,1]")
	}
	if c.Costs.Assignment.ITMProbability < c.Costs.Assignment.OTMProbability {
		return fmt.Errorf("costs.assignment.itm_probability must be >= otm_probability")
	}
	if c.Costs.Liquidity.MaxParticipation <= 0 || c.Costs.Liquidity.MaxParticipation > 1 {
		return fmt.Errorf("costs.liquidity.max_participation must be in (0,1]")
	}

	// Regime windows
	if c.Regime.OpeningRangeMinutes <= 0 {
		return fmt.Errorf("regime.opening_range_minutes must be > 0")
	}
	if c.Regime.VWAPLookbackBars <= 0 || c.Regime.ATRLookbackBars <= 0 || c.Regime.RecentRangeBars <= 0 {
		return fmt.Errorf("regime lookback bars must be > 0")
	}
	if c.Regime.CalmATRRatio <= 0 || c.Regime.ExpansionATRRatio < c.Regime.CalmATRRatio {
		return fmt.Errorf("regime ATR ratios invalid: calm=%.2f expansion=%.2f",
			c.Regime.CalmATRRatio, c.Regime.ExpansionATRRatio)
	}
	if _, err := time.ParseDuration(c.Regime.PreEventWindow); err != nil {
		return fmt.Errorf("regime.pre_event_window invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Regime.CloseWindow); err != nil {
		return fmt.Errorf("regime.close_window invalid: %w", err)
	}
	loc := c.RegimeLocation()
	if _, err := time.ParseInLocation("15:04", c.Regime.SessionEnd, loc); err != nil {
		return fmt.Errorf("regime.session_end invalid: %w", err)
	}

	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be in (0,65535]")
	}

	return nil
}

func validateBand(name string, b DeltaBand) error {
	if b.Min <= 0 || b.Max <= 0 {
		return fmt.Errorf("%s values must be > 0", name)
	}
	if b.Min >= b.Max {
		return fmt.Errorf("%s: min (%.3f) must be < max (%.3f)", name, b.Min, b.Max)
	}
	if b.Max > 0.5 {
		return fmt.Errorf("%s: max (%.3f) must be <= 0.50", name, b.Max)
	}
	return nil
}

// normalizeCostDefaults sets defaults for optional cost-model values.
func (c *Config) normalizeCostDefaults() {
	if c.Costs.Slippage.SizeExponent == 0 {
		c.Costs.Slippage.SizeExponent = defaultSizeExponent
	}
	if c.Costs.Financing.AvgHoldingDays == 0 {
		c.Costs.Financing.AvgHoldingDays = defaultAvgHoldingDays
	}
}

// RegimeLocation returns the configured session timezone, falling back to
// a fixed Eastern zone for minimal containers.
func (c *Config) RegimeLocation() *time.Location {
	tz := c.Regime.Timezone
	if tz == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}
	return loc
}

// PreEventWindow returns the parsed pre-event no-trade window.
func (c *Config) PreEventWindow() time.Duration {
	d, err := time.ParseDuration(c.Regime.PreEventWindow)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// CloseWindow returns the parsed end-of-session no-new-risk window.
func (c *Config) CloseWindow() time.Duration {
	d, err := time.ParseDuration(c.Regime.CloseWindow)
	if err != nil {
		return 45 * time.Minute
	}
	return d
}

// TickInterval returns the configured evaluation interval.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Backtest.TickInterval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}
