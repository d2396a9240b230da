package mqtt

import "strings"

// TopicRoot is the first level of every btscanner topic.
const TopicRoot = "btscanner"

// Topics builds the topics for one discovery session.
type Topics struct {
	base string
}

// NewTopics returns the topic builder for sessionID. Characters that are
// wildcards or separators in MQTT are replaced with "_".
func NewTopics(sessionID string) Topics {
	return Topics{base: TopicRoot + "/" + sanitise(sessionID)}
}

// Status is the retained online/offline topic, also used for the LWT.
func (t Topics) Status() string { return t.base + "/status" }

// State is the retained session state topic.
func (t Topics) State() string { return t.base + "/state" }

// Device is the topic a newly found device is announced on.
//
// Example: btscanner/default/device/AA:BB:CC:DD:EE:01
func (t Topics) Device(address string) string {
	return t.base + "/device/" + sanitise(address)
}

// AllDevices matches every device topic of the session.
func (t Topics) AllDevices() string { return t.base + "/device/+" }

// Command is the topic remote scan/stop commands arrive on.
func (t Topics) Command() string { return t.base + "/command" }

func sanitise(level string) string {
	if level == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(level)
}
