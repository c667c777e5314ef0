package mqtt

import "strings"

// Topic layout follows the zigbee2mqtt convention: each device publishes its state as a JSON
// document on <base>/<device> and its availability on <base>/<device>/availability, and
// accepts commands on <base>/<device>/set. The bridge's own topics live under <base>/bridge
// and are not device state.

// StatesTopic returns the wildcard subscription covering all device state topics.
func StatesTopic(base string) string {
	return base + "/+"
}

// AvailabilityTopic returns the wildcard subscription covering all device availability topics.
func AvailabilityTopic(base string) string {
	return base + "/+/availability"
}

// SetTopic returns the command topic for a device.
func SetTopic(base string, device string) string {
	return base + "/" + device + "/set"
}

// ParseTopic splits a received topic into the device name and whether it is the device's
// availability topic. ok is false for topics outside the device namespace, such as the
// zigbee2mqtt bridge topics.
func ParseTopic(base string, topic string) (device string, availability bool, ok bool) {
	rest, found := strings.CutPrefix(topic, base+"/")
	if !found || rest == "" {
		return "", false, false
	}
	parts := strings.Split(rest, "/")
	if parts[0] == "" || parts[0] == "bridge" {
		return "", false, false
	}
	switch len(parts) {
	case 1:
		return parts[0], false, true
	case 2:
		if parts[1] == "availability" {
			return parts[0], true, true
		}
	}
	return "", false, false
}
