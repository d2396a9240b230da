// Package telemetry mirrors a discovery session onto MQTT and InfluxDB.
//
// A Bridge subscribes to the session's updates and:
//   - publishes the session Status, retained, on btscanner/{session}/state
//     whenever state, progress, the menu, or the device count changes
//   - announces each new device on btscanner/{session}/device/{address}
//   - accepts {"action":"scan"} and {"action":"stop"} on
//     btscanner/{session}/command
//   - records a device_sightings point per new device and a scan_sessions
//     point per finished scan
//
// Either side is optional. A Bridge with neither a publisher nor a recorder
// just drains updates.
package telemetry
