// Package binance adapts the Binance futures SDK to the provider contract.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"candleflow/internal/market"
	"candleflow/internal/provider"

	"github.com/adshao/go-binance/v2/futures"
)

const maxKlineLimit = 1500

// Config describes how to reach the Binance REST API.
type Config struct {
	Name        string
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "binance"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// Source implements provider.Provider on top of go-binance.
type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	if base := strings.TrimSpace(final.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) FetchBars(ctx context.Context, symbol string, r market.DateRange, freq market.Frequency) ([]provider.RawRecord, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval, err := binanceInterval(freq)
	if err != nil {
		return nil, err
	}
	// Binance wants symbols without slashes (ETH/USDT -> ETHUSDT).
	clean := strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))

	var out []provider.RawRecord
	start := r.Start.UnixMilli()
	end := r.End.UnixMilli()
	for start <= end {
		kls, err := s.client.NewKlinesService().
			Symbol(clean).
			Interval(interval).
			StartTime(start).
			EndTime(end).
			Limit(maxKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(kls) == 0 {
			break
		}
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			out = append(out, provider.RawRecord{
				"symbol":    symbol,
				"timestamp": kl.OpenTime,
				"open":      kl.Open,
				"high":      kl.High,
				"low":       kl.Low,
				"close":     kl.Close,
				"volume":    kl.Volume,
				"amount":    kl.QuoteAssetVolume,
				"trades":    kl.TradeNum,
			})
		}
		last := kls[len(kls)-1]
		if last == nil || last.CloseTime <= start {
			break
		}
		start = last.CloseTime + 1
		if len(kls) < maxKlineLimit {
			break
		}
	}
	return out, nil
}

func (s *Source) FetchAssetList(ctx context.Context, class market.AssetClass) ([]provider.RawAssetInfo, error) {
	if class != "" && class != market.ClassCrypto {
		return nil, nil
	}
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]provider.RawAssetInfo, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		if !strings.EqualFold(sym.Status, "TRADING") {
			continue
		}
		out = append(out, provider.RawAssetInfo{
			Symbol: sym.BaseAsset + "/" + sym.QuoteAsset,
			Name:   sym.Symbol,
			Market: "binance-futures",
			Class:  market.ClassCrypto,
		})
	}
	return out, nil
}

func (s *Source) Health(ctx context.Context) bool {
	if s == nil || s.client == nil {
		return false
	}
	return s.client.NewPingService().Do(ctx) == nil
}

func binanceInterval(freq market.Frequency) (string, error) {
	switch freq {
	case market.Freq1m, market.Freq5m, market.Freq15m, market.Freq30m,
		market.Freq1h, market.Freq4h, market.FreqDay, market.FreqWk:
		return string(freq), nil
	default:
		return "", fmt.Errorf("frequency %q not supported by binance source", freq)
	}
}
