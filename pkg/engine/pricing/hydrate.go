package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
)

// volumeTypeNames maps API tier names to the pricing catalog's product names.
var volumeTypeNames = map[string]string{
	"gp2":      "General Purpose",
	"gp3":      "General Purpose SSD (gp3)",
	"io1":      "Provisioned IOPS SSD",
	"st1":      "Throughput Optimized HDD",
	"sc1":      "Cold HDD",
	"standard": "Magnetic",
}

// Hydrate refreshes the volume tiers of a copy of the default table from
// the provider pricing catalog. Any lookup failure leaves the built-in rate
// in place; the returned table is immutable either way. The whole pass is
// bounded so a slow catalog cannot delay scan start.
func Hydrate(ctx context.Context, cfg aws.Config, region string, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	t := Default()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The pricing catalog only answers from us-east-1.
	global := cfg.Copy()
	global.Region = "us-east-1"
	svc := pricing.NewFromConfig(global)

	for tier, productName := range volumeTypeNames {
		price, err := fetchVolumeRate(ctx, svc, region, productName)
		if err != nil {
			logger.Debug("pricing hydration fallback", "tier", tier, "error", err)
			continue
		}
		t.volumeGBMonth[tier] = price
	}
	return t
}

func fetchVolumeRate(ctx context.Context, svc *pricing.Client, region, productName string) (float64, error) {
	out, err := svc.GetProducts(ctx, &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		MaxResults:  aws.Int32(1),
		Filters: []types.Filter{
			{Type: types.FilterTypeTermMatch, Field: aws.String("productFamily"), Value: aws.String("Storage")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("serviceCode"), Value: aws.String("AmazonEC2")},
			{Type: types.FilterTypeTermMatch, Field: aws.String("regionCode"), Value: aws.String(region)},
			{Type: types.FilterTypeTermMatch, Field: aws.String("volumeType"), Value: aws.String(productName)},
		},
	})
	if err != nil {
		return 0, err
	}
	if len(out.PriceList) == 0 {
		return 0, fmt.Errorf("no pricing found for %s in %s", productName, region)
	}
	return parsePriceFromJSON(out.PriceList[0])
}

// parsePriceFromJSON digs the USD on-demand rate out of a pricing catalog
// product document.
func parsePriceFromJSON(jsonStr string) (float64, error) {
	type priceDimension struct {
		PricePerUnit map[string]string `json:"pricePerUnit"`
	}
	type term struct {
		PriceDimensions map[string]priceDimension `json:"priceDimensions"`
	}
	type product struct {
		Terms map[string]map[string]term `json:"terms"` // OnDemand -> SKU -> term
	}

	var p product
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return 0, err
	}

	if onDemand, ok := p.Terms["OnDemand"]; ok {
		for _, t := range onDemand {
			for _, dim := range t.PriceDimensions {
				if valStr, ok := dim.PricePerUnit["USD"]; ok {
					if val, err := strconv.ParseFloat(valStr, 64); err == nil {
						return val, nil
					}
				}
			}
		}
	}
	return 0, fmt.Errorf("price not found in product document")
}
