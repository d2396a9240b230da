// Package influxdb records discovery history in InfluxDB.
//
// Two measurements are written through the non-blocking, batched write API of
// influxdb-client-go v2:
//
//	device_sightings  one point per newly found device
//	                  tags: session, address, bonded
//	                  fields: name, reveal
//	scan_sessions     one point per finished scan
//	                  tags: session
//	                  fields: duration_ms, devices
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { logger.Warn("influx write failed", "error", err) })
//	client.WriteSighting("default", rec, reveal, time.Now())
package influxdb
