package market

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is the bar interval of a candle series.
type Frequency string

const (
	Freq1m  Frequency = "1m"
	Freq5m  Frequency = "5m"
	Freq15m Frequency = "15m"
	Freq30m Frequency = "30m"
	Freq1h  Frequency = "1h"
	Freq4h  Frequency = "4h"
	FreqDay Frequency = "1d"
	FreqWk  Frequency = "1w"
)

var frequencyDurations = map[Frequency]time.Duration{
	Freq1m:  time.Minute,
	Freq5m:  5 * time.Minute,
	Freq15m: 15 * time.Minute,
	Freq30m: 30 * time.Minute,
	Freq1h:  time.Hour,
	Freq4h:  4 * time.Hour,
	FreqDay: 24 * time.Hour,
	FreqWk:  7 * 24 * time.Hour,
}

// ParseFrequency normalizes a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := frequencyDurations[f]; !ok {
		return "", fmt.Errorf("unsupported frequency: %q", s)
	}
	return f, nil
}

// Duration returns the bar length. Unknown frequencies fall back to a day.
func (f Frequency) Duration() time.Duration {
	if d, ok := frequencyDurations[f]; ok {
		return d
	}
	return 24 * time.Hour
}

func (f Frequency) Valid() bool {
	_, ok := frequencyDurations[f]
	return ok
}
