package influxdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/btscanner/internal/discovery"
	"github.com/nerrad567/btscanner/internal/infrastructure/config"
	"github.com/nerrad567/btscanner/internal/infrastructure/influxdb"
)

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "btscanner-dev-token",
		Org:           "btscanner",
		Bucket:        "discovery",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fields(p *write.Point) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"
	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNilClientIsInert(t *testing.T) {
	var c *influxdb.Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	c.WriteSighting("default", discovery.NewDeviceRecord("AA:BB:CC:DD:EE:01", "", false), 1, time.Now())
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestSightingPoint(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		rec      discovery.DeviceRecord
		wantName string
		bonded   string
	}{
		{"named bonded", discovery.NewDeviceRecord("AA:BB:CC:DD:EE:01", "Phone", true), "Phone", "true"},
		{"unnamed", discovery.NewDeviceRecord("AA:BB:CC:DD:EE:02", "", false), "", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := influxdb.SightingPoint("default", tt.rec, 2, at)
			if p.Name() != influxdb.MeasurementSightings {
				t.Errorf("Name() = %q", p.Name())
			}
			if !p.Time().Equal(at) {
				t.Errorf("Time() = %v, want %v", p.Time(), at)
			}
			gotTags := tags(p)
			if gotTags["session"] != "default" || gotTags["address"] != tt.rec.Address || gotTags["bonded"] != tt.bonded {
				t.Errorf("tags = %v", gotTags)
			}
			gotFields := fields(p)
			if gotFields["name"] != tt.wantName {
				t.Errorf("name field = %v, want %q", gotFields["name"], tt.wantName)
			}
			if gotFields["reveal"] != int64(2) {
				t.Errorf("reveal field = %v (%T), want 2", gotFields["reveal"], gotFields["reveal"])
			}
		})
	}
}

func TestScanPoint(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	ended := started.Add(12 * time.Second)

	p := influxdb.ScanPoint("default", started, ended, 3)
	if p.Name() != influxdb.MeasurementScans {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.Time().Equal(ended) {
		t.Errorf("Time() = %v, want end time", p.Time())
	}
	got := fields(p)
	if got["duration_ms"] != int64(12000) || got["devices"] != int64(3) {
		t.Errorf("fields = %v", got)
	}
}

func TestWriteAgainstServer(t *testing.T) {
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	defer client.Close() //nolint:errcheck // test cleanup

	client.WriteSighting("test", discovery.NewDeviceRecord("AA:BB:CC:DD:EE:01", "Phone", false), 1, time.Now())
	client.WriteScan("test", time.Now().Add(-time.Second), time.Now(), 1)
	client.Flush()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
