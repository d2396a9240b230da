// Package config loads the btscanner YAML file into a Config.
//
// Load applies defaults, reads the file, overlays BTSCANNER_* environment
// variables and validates the result. Broker and database credentials are
// best supplied through the environment:
//
//	BTSCANNER_MQTT_PASSWORD
//	BTSCANNER_INFLUXDB_TOKEN
//
// A missing or invalid file is an error; callers exit on it.
package config
