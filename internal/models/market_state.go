package models

import "time"

// VolBucket classifies the volatility-index level into coarse regimes.
type VolBucket string

const (
	// VolLow is a quiet tape, tighter spreads than usual.
	VolLow VolBucket = "low"
	// VolNormal is the baseline regime.
	VolNormal VolBucket = "normal"
	// VolElevated widens quoted spreads materially.
	VolElevated VolBucket = "elevated"
	// VolExtreme is panic conditions, spreads widest.
	VolExtreme VolBucket = "extreme"
)

// VolBucketFor maps a volatility-index level to its bucket.
func VolBucketFor(level float64) VolBucket {
	switch {
	case level < 15:
		return VolLow
	case level < 25:
		return VolNormal
	case level < 35:
		return VolElevated
	default:
		return VolExtreme
	}
}

// TimeOfDayBucket classifies the session clock for friction purposes.
type TimeOfDayBucket string

const (
	// SessionOpen is the first 45 minutes after the bell.
	SessionOpen TimeOfDayBucket = "open"
	// SessionMidday is the quiet middle of the session.
	SessionMidday TimeOfDayBucket = "midday"
	// SessionClose is the last hour into the bell.
	SessionClose TimeOfDayBucket = "close"
)

// TimeOfDayBucketFor maps minutes since the opening bell to a bucket.
// Minutes outside the regular 390-minute session clamp to the edges.
func TimeOfDayBucketFor(minutesSinceOpen float64) TimeOfDayBucket {
	switch {
	case minutesSinceOpen < 45:
		return SessionOpen
	case minutesSinceOpen >= 330:
		return SessionClose
	default:
		return SessionMidday
	}
}

// MarketState captures the friction-relevant market context at a tick.
type MarketState struct {
	Timestamp    time.Time       `json:"timestamp"`
	Spot         float64         `json:"spot"`
	VolIndex     float64         `json:"vol_index"`
	VolBucket    VolBucket       `json:"vol_bucket"`
	TimeOfDay    TimeOfDayBucket `json:"time_of_day"`
	EventActive  bool            `json:"event_active"`
	DaysToExpiry float64         `json:"days_to_expiry"`
}

// SpreadWideningMultiplier derives how much wider than baseline quoted
// spreads should be treated in this state. Calibrated so a normal midday
// no-event tape returns exactly 1.0.
func (m MarketState) SpreadWideningMultiplier() float64 {
	mult := 1.0

	switch m.VolBucket {
	case VolLow:
		mult *= 0.85
	case VolNormal:
		mult *= 1.0
	case VolElevated:
		mult *= 1.30
	case VolExtreme:
		mult *= 1.80
	}

	switch m.TimeOfDay {
	case SessionOpen:
		mult *= 1.20
	case SessionMidday:
		mult *= 1.0
	case SessionClose:
		mult *= 1.15
	}

	if m.EventActive {
		mult *= 1.25
	}

	return mult
}
