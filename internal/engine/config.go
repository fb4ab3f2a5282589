package engine

import "fmt"

// Config holds the immutable parameters of one run. Start from DefaultConfig
// and override; decoders unmarshal on top of the defaults so omitted fields
// keep their documented values.
type Config struct {
	TotalTicks             int     `yaml:"total_ticks" json:"total_ticks"`                           // 168 = one week of hourly ticks
	AuctionHouseCut        float64 `yaml:"auction_house_cut" json:"auction_house_cut"`               // Fraction kept by the house on sales
	ListingDuration        int     `yaml:"listing_duration" json:"listing_duration"`                 // Ticks before a listing expires
	BaseInflationRate      float64 `yaml:"base_inflation_rate" json:"base_inflation_rate"`           // Per tick
	DemandElasticity       float64 `yaml:"demand_elasticity" json:"demand_elasticity"`               // Pull toward equilibrium price
	SupplyElasticity       float64 `yaml:"supply_elasticity" json:"supply_elasticity"`               // Supply/demand reversion toward base
	VolatilityDecay        float64 `yaml:"volatility_decay" json:"volatility_decay"`                 // Multiplier applied every tick
	RandomEvents           bool    `yaml:"random_events" json:"random_events"`                       // Generate events on the fly
	RandomEventProbability float64 `yaml:"random_event_probability" json:"random_event_probability"` // Per tick
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		TotalTicks:             168,
		AuctionHouseCut:        0.05,
		ListingDuration:        48,
		BaseInflationRate:      0.001,
		DemandElasticity:       0.3,
		SupplyElasticity:       0.2,
		VolatilityDecay:        0.95,
		RandomEvents:           true,
		RandomEventProbability: 0.03,
	}
}

// Validate rejects configurations the tick loop cannot honor.
func (c Config) Validate() error {
	if c.TotalTicks < 0 {
		return fmt.Errorf("total_ticks must be >= 0, got %d", c.TotalTicks)
	}
	if c.AuctionHouseCut < 0 || c.AuctionHouseCut >= 1 {
		return fmt.Errorf("auction_house_cut must be in [0, 1), got %v", c.AuctionHouseCut)
	}
	if c.ListingDuration < 1 {
		return fmt.Errorf("listing_duration must be >= 1, got %d", c.ListingDuration)
	}
	if c.VolatilityDecay <= 0 || c.VolatilityDecay > 1 {
		return fmt.Errorf("volatility_decay must be in (0, 1], got %v", c.VolatilityDecay)
	}
	if c.DemandElasticity < 0 || c.DemandElasticity > 1 {
		return fmt.Errorf("demand_elasticity must be in [0, 1], got %v", c.DemandElasticity)
	}
	if c.SupplyElasticity < 0 || c.SupplyElasticity > 1 {
		return fmt.Errorf("supply_elasticity must be in [0, 1], got %v", c.SupplyElasticity)
	}
	if c.RandomEventProbability < 0 || c.RandomEventProbability > 1 {
		return fmt.Errorf("random_event_probability must be in [0, 1], got %v", c.RandomEventProbability)
	}
	return nil
}
