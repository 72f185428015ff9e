package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/goal_vault/model"
)

const (
	priceTTL     = 5 * time.Minute
	sentimentTTL = 30 * time.Minute

	priceFetchTimeout     = 5 * time.Second
	sentimentFetchTimeout = 8 * time.Second

	priceRefreshInterval     = 30 * time.Second
	sentimentRefreshInterval = 10 * time.Minute
)

// Quote is one asset's exchange rate in the supported quote currencies.
// IsLive is false when the quote is a static fallback substituted after a
// provider failure; provider failures are never surfaced to callers.
type Quote struct {
	USD          decimal.Decimal `json:"usd"`
	EUR          decimal.Decimal `json:"eur"`
	USDChange24h float64         `json:"usd_24h_change"`
	EURChange24h float64         `json:"eur_24h_change"`
	IsLive       bool            `json:"isLive"`
	FetchedAt    time.Time       `json:"lastUpdated"`
}

// PriceIn returns the quote in the requested currency.
func (q Quote) PriceIn(c model.Currency) decimal.Decimal {
	if c == model.CurrencyEUR {
		return q.EUR
	}
	return q.USD
}

func (q Quote) ChangeIn(c model.Currency) float64 {
	if c == model.CurrencyEUR {
		return q.EURChange24h
	}
	return q.USDChange24h
}

// Sentiment is a derived 0-100 market mood figure, refreshed on a longer
// interval than prices.
type Sentiment struct {
	Value       int       `json:"value"`
	Change24h   float64   `json:"change24h"`
	MarketCap   float64   `json:"marketCap"`
	Volume      float64   `json:"volume"`
	Description string    `json:"description"`
	IsLive      bool      `json:"isLive"`
	FetchedAt   time.Time `json:"lastUpdated"`
}

var fallbackEthQuote = Quote{
	USD: decimal.NewFromInt(2300),
	EUR: decimal.NewFromInt(2100),
}

var fallbackBtcQuote = Quote{
	USD: decimal.NewFromInt(35000),
	EUR: decimal.NewFromInt(32000),
}

// PriceOracle caches quotes from a CoinGecko-shaped provider with a bounded
// staleness window. Concurrent refreshes of the same asset collapse to one
// in-flight fetch. The clock is injectable so TTL behavior is testable.
type PriceOracle struct {
	baseURL string
	httpc   *http.Client
	now     func() time.Time
	log     zerolog.Logger

	group singleflight.Group

	mu        sync.Mutex
	ethCache  *Quote
	btcCache  *Quote
	sentCache *Sentiment
}

func NewPriceOracle(baseURL string, log zerolog.Logger) *PriceOracle {
	return &PriceOracle{
		baseURL: baseURL,
		httpc:   &http.Client{},
		now:     time.Now,
		log:     log.With().Str("component", "price_oracle").Logger(),
	}
}

// EthQuote returns the current ETH quote, from cache when fresh. It never
// returns an error: on provider failure a fallback quote with IsLive=false is
// substituted and cached so the provider is not hammered while down.
func (o *PriceOracle) EthQuote(ctx context.Context) Quote {
	return o.quote(ctx, "ethereum", &o.ethCache, fallbackEthQuote)
}

// BtcQuote is EthQuote for BTC; used by the portfolio overview surface.
func (o *PriceOracle) BtcQuote(ctx context.Context) Quote {
	return o.quote(ctx, "bitcoin", &o.btcCache, fallbackBtcQuote)
}

func (o *PriceOracle) quote(ctx context.Context, asset string, cache **Quote, fallback Quote) Quote {
	o.mu.Lock()
	if c := *cache; c != nil && o.now().Sub(c.FetchedAt) < priceTTL {
		q := *c
		o.mu.Unlock()
		return q
	}
	o.mu.Unlock()

	v, _, _ := o.group.Do(asset, func() (interface{}, error) {
		q, err := o.fetchQuote(ctx, asset)
		if err != nil {
			// A stale real quote beats the static fallback, which only covers
			// the case where no fetch ever succeeded.
			o.mu.Lock()
			prev := *cache
			o.mu.Unlock()
			if prev != nil {
				q = *prev
				o.log.Warn().Err(err).Str("asset", asset).Msg("price fetch failed, serving stale quote")
			} else {
				q = fallback
				o.log.Warn().Err(err).Str("asset", asset).Msg("price fetch failed, using fallback quote")
			}
			q.IsLive = false
		}
		q.FetchedAt = o.now()
		o.mu.Lock()
		*cache = &q
		o.mu.Unlock()
		return q, nil
	})
	return v.(Quote)
}

func (o *PriceOracle) fetchQuote(ctx context.Context, asset string) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, priceFetchTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd,eur&include_24hr_change=true", o.baseURL, asset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpc.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("price provider returned %d", resp.StatusCode)
	}

	var body map[string]struct {
		USD          float64 `json:"usd"`
		EUR          float64 `json:"eur"`
		USDChange24h float64 `json:"usd_24h_change"`
		EURChange24h float64 `json:"eur_24h_change"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, err
	}
	row, ok := body[asset]
	if !ok {
		return Quote{}, fmt.Errorf("no %s entry in price response", asset)
	}
	return Quote{
		USD:          decimal.NewFromFloat(row.USD),
		EUR:          decimal.NewFromFloat(row.EUR),
		USDChange24h: row.USDChange24h,
		EURChange24h: row.EURChange24h,
		IsLive:       true,
	}, nil
}

// MarketSentiment returns the cached market mood, deriving a fresh figure
// from the provider's global endpoint when the 30 minute window lapses.
func (o *PriceOracle) MarketSentiment(ctx context.Context) Sentiment {
	o.mu.Lock()
	if c := o.sentCache; c != nil && o.now().Sub(c.FetchedAt) < sentimentTTL {
		s := *c
		o.mu.Unlock()
		return s
	}
	o.mu.Unlock()

	v, _, _ := o.group.Do("sentiment", func() (interface{}, error) {
		s, err := o.fetchSentiment(ctx)
		if err != nil {
			o.log.Warn().Err(err).Msg("sentiment fetch failed, using derived fallback")
			s = fallbackSentiment(o.now())
		}
		s.FetchedAt = o.now()
		o.mu.Lock()
		o.sentCache = &s
		o.mu.Unlock()
		return s, nil
	})
	return v.(Sentiment)
}

func (o *PriceOracle) fetchSentiment(ctx context.Context) (Sentiment, error) {
	ctx, cancel := context.WithTimeout(ctx, sentimentFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/global", nil)
	if err != nil {
		return Sentiment{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpc.Do(req)
	if err != nil {
		return Sentiment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Sentiment{}, fmt.Errorf("sentiment provider returned %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			TotalMarketCap     map[string]float64 `json:"total_market_cap"`
			TotalVolume        map[string]float64 `json:"total_volume"`
			MarketCapChange24h float64            `json:"market_cap_change_percentage_24h_usd"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Sentiment{}, err
	}

	change := body.Data.MarketCapChange24h
	value := sentimentFromChange(change)
	return Sentiment{
		Value:       value,
		Change24h:   change,
		MarketCap:   body.Data.TotalMarketCap["usd"],
		Volume:      body.Data.TotalVolume["usd"],
		Description: sentimentDescription(value),
		IsLive:      true,
	}, nil
}

// sentimentFromChange maps 24h market-cap movement onto a 0-100 mood scale
// around a neutral 50.
func sentimentFromChange(change float64) int {
	s := 50.0
	switch {
	case change > 5:
		s += 20
	case change > 2:
		s += 10
	case change > 0:
		s += 5
	case change < -5:
		s -= 20
	case change < -2:
		s -= 10
	case change < 0:
		s -= 5
	}
	return int(math.Round(math.Max(0, math.Min(100, s))))
}

// fallbackSentiment derives a stable pseudo-figure from the hour so repeated
// failures do not flap the UI.
func fallbackSentiment(now time.Time) Sentiment {
	hour := float64(now.Unix() / 3600)
	v := 50 + math.Sin(hour)*100*0.3
	v = math.Max(20, math.Min(80, v))
	value := int(math.Round(v))
	return Sentiment{
		Value:       value,
		Change24h:   math.Sin(hour/24) * 3,
		MarketCap:   1.2e12,
		Volume:      5e10,
		Description: sentimentDescription(value),
		IsLive:      false,
	}
}

func sentimentDescription(v int) string {
	switch {
	case v >= 80:
		return "Very Bullish"
	case v >= 70:
		return "Bullish"
	case v >= 60:
		return "Slightly Bullish"
	case v >= 40:
		return "Neutral"
	case v >= 30:
		return "Slightly Bearish"
	case v >= 20:
		return "Bearish"
	default:
		return "Very Bearish"
	}
}

// Run refreshes the ETH quote every 30 seconds and the sentiment figure on
// its longer interval, independent of any goal's state, until ctx is done.
func (o *PriceOracle) Run(ctx context.Context) {
	priceTicker := time.NewTicker(priceRefreshInterval)
	defer priceTicker.Stop()
	sentTicker := time.NewTicker(sentimentRefreshInterval)
	defer sentTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-priceTicker.C:
			o.EthQuote(ctx)
		case <-sentTicker.C:
			o.MarketSentiment(ctx)
		}
	}
}
