// Package pricing resolves EC2 on-demand hourly prices.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when neither the API nor the fallback table knows a type.
var ErrNoPrice = errors.New("no price available")

// DefaultTTL bounds how long a fetched price is reused.
const DefaultTTL = 24 * time.Hour

// regionLocations maps region codes to the Pricing API "location" attribute
// for regions where regionCode filtering is unreliable.
var regionLocations = map[string]string{
	"us-east-1":    "US East (N. Virginia)",
	"us-west-2":    "US West (Oregon)",
	"eu-central-1": "EU (Frankfurt)",
}

// PricingAPI is the read-only Pricing surface.
type PricingAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

type priceRecord struct {
	price   float64
	fetched time.Time
}

// Client looks prices up through the Pricing API with an in-memory cache and
// falls back to a static table when the API has no answer.
type Client struct {
	logger   *slog.Logger
	svc      PricingAPI
	cache    map[string]priceRecord
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	fallback map[string]float64
}

// NewClient builds a client from a configuration pinned to the Pricing
// endpoint region.
func NewClient(cfg aws.Config, logger *slog.Logger) *Client {
	return newClient(pricing.NewFromConfig(cfg), logger)
}

func newClient(svc PricingAPI, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		logger:   logger,
		svc:      svc,
		cache:    make(map[string]priceRecord),
		ttl:      DefaultTTL,
		now:      time.Now,
		fallback: FallbackPrices(),
	}
}

// HourlyPrice returns the Linux shared-tenancy on-demand price of an instance type.
func (c *Client) HourlyPrice(ctx context.Context, region, instanceType string) (float64, error) {
	key := region + "/" + instanceType

	c.mu.RLock()
	rec, ok := c.cache[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(rec.fetched) < c.ttl {
		return rec.price, nil
	}

	price, err := c.fetchEC2Price(ctx, region, instanceType)
	if err != nil {
		if p, ok := c.fallback[instanceType]; ok {
			c.logger.Debug("Pricing API miss, using fallback", "type", instanceType, "region", region, "error", err)
			return p, nil
		}
		return 0, fmt.Errorf("%w for %s in %s: %v", ErrNoPrice, instanceType, region, err)
	}

	c.mu.Lock()
	c.cache[key] = priceRecord{price: price, fetched: c.now()}
	c.mu.Unlock()
	return price, nil
}

func (c *Client) fetchEC2Price(ctx context.Context, region, instanceType string) (float64, error) {
	filters := []types.Filter{
		termMatch("serviceCode", "AmazonEC2"),
		termMatch("productFamily", "Compute Instance"),
		termMatch("instanceType", instanceType),
		termMatch("tenancy", "Shared"),
		termMatch("operatingSystem", "Linux"),
		termMatch("preInstalledSw", "NA"),
		termMatch("capacitystatus", "Used"),
	}
	if loc, ok := regionLocations[region]; ok {
		filters = append(filters, termMatch("location", loc))
	} else {
		filters = append(filters, termMatch("regionCode", region))
	}

	out, err := c.svc.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters:     filters,
		MaxResults:  aws.Int32(1),
	})
	if err != nil {
		return 0, err
	}
	if len(out.PriceList) == 0 {
		return 0, fmt.Errorf("no pricing found for %s %s", region, instanceType)
	}
	return parsePriceFromJSON(out.PriceList[0])
}

func termMatch(field, value string) types.Filter {
	return types.Filter{
		Type:  types.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

func parsePriceFromJSON(jsonStr string) (float64, error) {
	type priceDimension struct {
		PricePerUnit map[string]string `json:"pricePerUnit"`
	}
	type term struct {
		PriceDimensions map[string]priceDimension `json:"priceDimensions"`
	}
	type product struct {
		Terms map[string]map[string]term `json:"terms"` // OnDemand -> SKU -> Term
	}

	var p product
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return 0, err
	}

	for _, t := range p.Terms["OnDemand"] {
		for _, dim := range t.PriceDimensions {
			raw, ok := dim.PricePerUnit["USD"]
			if !ok {
				continue
			}
			d, err := decimal.NewFromString(raw)
			if err != nil {
				continue
			}
			v, _ := d.Float64()
			return v, nil
		}
	}
	return 0, fmt.Errorf("price not found in JSON")
}

// Static serves prices from the fallback table only.
type Static map[string]float64

// HourlyPrice looks instanceType up regardless of region.
func (s Static) HourlyPrice(_ context.Context, region, instanceType string) (float64, error) {
	p, ok := s[instanceType]
	if !ok {
		return 0, fmt.Errorf("%w for %s in %s", ErrNoPrice, instanceType, region)
	}
	return p, nil
}

// FallbackPrices returns us-east-1 Linux on-demand prices for common types.
func FallbackPrices() map[string]float64 {
	return map[string]float64{
		"t2.micro":    0.0116,
		"t3.micro":    0.0104,
		"t3.medium":   0.0416,
		"t3.large":    0.0832,
		"m5.large":    0.096,
		"m5.xlarge":   0.192,
		"c5.large":    0.085,
		"c6i.2xlarge": 0.34,
		"r5.large":    0.126,
		"g4dn.xlarge": 0.526,
		"g5.xlarge":   1.006,
	}
}
