package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/btscanner/internal/discovery"
)

// Measurement names.
const (
	MeasurementSightings = "device_sightings"
	MeasurementScans     = "scan_sessions"
)

// WriteSighting records a newly found device. reveal is its position in the
// session's list.
func (c *Client) WriteSighting(session string, rec discovery.DeviceRecord, reveal int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(SightingPoint(session, rec, reveal, at))
}

// WriteScan records a finished scan that ran from started to ended and found
// devices entries.
func (c *Client) WriteScan(session string, started, ended time.Time, devices int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(ScanPoint(session, started, ended, devices))
}

// SightingPoint builds the device_sightings point for rec. A record without a
// name gets an empty name field.
func SightingPoint(session string, rec discovery.DeviceRecord, reveal int, at time.Time) *write.Point {
	name := ""
	if rec.Name != nil {
		name = *rec.Name
	}
	return write.NewPoint(MeasurementSightings,
		map[string]string{
			"session": session,
			"address": rec.Address,
			"bonded":  strconv.FormatBool(rec.Bonded),
		},
		map[string]interface{}{
			"name":   name,
			"reveal": reveal,
		},
		at)
}

// ScanPoint builds the scan_sessions point, stamped with the end time.
func ScanPoint(session string, started, ended time.Time, devices int) *write.Point {
	return write.NewPoint(MeasurementScans,
		map[string]string{"session": session},
		map[string]interface{}{
			"duration_ms": ended.Sub(started).Milliseconds(),
			"devices":     devices,
		},
		ended)
}
