package database

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/pkg/config"
	"github.com/cryptobuddy/pkg/models"
)

const snapshotMeasurement = "market_snapshots"

// InfluxRecorder keeps a time series of top-coin listings
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	logger   *logrus.Entry
	bucket   string
	now      func() time.Time
}

// NewInfluxRecorder creates a new InfluxDB recorder
func NewInfluxRecorder(cfg *config.InfluxConfig, logger *logrus.Logger) *InfluxRecorder {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())).
			SetLogLevel(0),
	)

	return &InfluxRecorder{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		logger:   logger.WithField("component", "influxdb"),
		bucket:   cfg.Bucket,
		now:      time.Now,
	}
}

// Close closes the InfluxDB client
func (ir *InfluxRecorder) Close() {
	ir.client.Close()
}

// Health checks InfluxDB health
func (ir *InfluxRecorder) Health(ctx context.Context) error {
	health, err := ir.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: %s", msg)
	}

	return nil
}

// RecordSnapshots writes one point per coin
func (ir *InfluxRecorder) RecordSnapshots(ctx context.Context, snapshots []models.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(snapshots))
	for _, s := range snapshots {
		ts := s.LastUpdated
		if ts.IsZero() {
			ts = ir.now()
		}

		points = append(points, influxdb2.NewPoint(
			snapshotMeasurement,
			map[string]string{
				"coin_id": s.ID,
				"symbol":  s.Symbol,
			},
			map[string]interface{}{
				"price":      s.CurrentPrice,
				"market_cap": s.MarketCap,
				"volume_24h": s.TotalVolume,
				"change_24h": s.PriceChange24h,
				"rank":       s.MarketCapRank,
			},
			ts,
		))
	}

	if err := ir.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write market snapshots: %w", err)
	}

	ir.logger.WithField("count", len(points)).Debug("Recorded market snapshots")
	return nil
}

// historyQuery reads one coin's prices; every caller value arrives as a
// Flux parameter, never as query text
const historyQuery = `
	from(bucket: params.bucket)
		|> range(start: time(v: params.start), stop: time(v: params.stop))
		|> filter(fn: (r) => r._measurement == params.measurement)
		|> filter(fn: (r) => r.coin_id == params.coin)
		|> filter(fn: (r) => r._field == "price")
		|> sort(columns: ["_time"])
`

type historyParams struct {
	Bucket      string `json:"bucket"`
	Start       string `json:"start"`
	Stop        string `json:"stop"`
	Measurement string `json:"measurement"`
	Coin        string `json:"coin"`
}

// PriceHistory reads back the recorded USD prices of a coin
func (ir *InfluxRecorder) PriceHistory(ctx context.Context, coinID string, from, to time.Time) ([]models.PricePoint, error) {
	params := historyParams{
		Bucket:      ir.bucket,
		Start:       from.UTC().Format(time.RFC3339),
		Stop:        to.UTC().Format(time.RFC3339),
		Measurement: snapshotMeasurement,
		Coin:        coinID,
	}

	ir.logger.WithFields(logrus.Fields{
		"coin": coinID,
		"from": from.Format(time.RFC3339),
		"to":   to.Format(time.RFC3339),
	}).Debug("Executing InfluxDB query for price history")

	result, err := ir.queryAPI.QueryWithParams(ctx, historyQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer result.Close()

	points := make([]models.PricePoint, 0)
	for result.Next() {
		record := result.Record()
		if v, ok := record.Value().(float64); ok {
			points = append(points, models.PricePoint{Timestamp: record.Time(), Price: v})
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("query error: %w", result.Err())
	}

	return points, nil
}
