package bluez

import (
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/nerrad567/btscanner/internal/discovery"
)

// AddrFromPath extracts the MAC address from a BlueZ device path such as
// /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF. It returns "" for other paths.
func AddrFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	addr := strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
	if len(addr) != 17 {
		return ""
	}
	return strings.ToUpper(addr)
}

// recordFromProps builds a record from Device1 properties. The remote Name
// is used as-is; Alias is ignored because BlueZ fills it with the address
// when the device never reported a name.
func recordFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) (discovery.DeviceRecord, bool) {
	addr := stringProp(props, "Address")
	if addr == "" {
		addr = AddrFromPath(path)
	}
	if addr == "" {
		return discovery.DeviceRecord{}, false
	}
	paired, _ := boolProp(props, "Paired")
	return discovery.NewDeviceRecord(strings.ToUpper(addr), stringProp(props, "Name"), paired), true
}

func stringProp(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

func boolProp(props map[string]dbus.Variant, key string) (value, ok bool) {
	v, present := props[key]
	if !present {
		return false, false
	}
	b, isBool := v.Value().(bool)
	return b, isBool
}

// deviceCache mirrors the Device1 properties of objects under one adapter,
// so that a change signal carrying only RSSI can still yield a full record.
type deviceCache struct {
	mu      sync.Mutex
	devices map[dbus.ObjectPath]map[string]dbus.Variant
}

func newDeviceCache() *deviceCache {
	return &deviceCache{devices: make(map[dbus.ObjectPath]map[string]dbus.Variant)}
}

// merge applies changed properties and returns the resulting record.
func (c *deviceCache) merge(path dbus.ObjectPath, changed map[string]dbus.Variant) (discovery.DeviceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	props, ok := c.devices[path]
	if !ok {
		props = make(map[string]dbus.Variant, len(changed))
		c.devices[path] = props
	}
	for k, v := range changed {
		props[k] = v
	}
	return recordFromProps(path, props)
}

func (c *deviceCache) remove(path dbus.ObjectPath) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.devices, path)
}

func (c *deviceCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.devices)
}
