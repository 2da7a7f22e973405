package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic this service uses.
const TopicPrefix = "devremote"

// Topics builds topic names. The zero value is ready to use.
type Topics struct{}

// DeviceState is the retained desired-state topic of a device.
//
// Example: devremote/state/3f9c...
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// AgentStatus is the topic a device agent reports its status on.
//
// Example: devremote/agent/3f9c.../status
func (Topics) AgentStatus(deviceID string) string {
	return fmt.Sprintf("%s/agent/%s/status", TopicPrefix, deviceID)
}

// AllAgentStatus matches every agent status topic.
func (Topics) AllAgentStatus() string {
	return TopicPrefix + "/agent/+/status"
}

// ServiceStatus carries this service's own online/offline status.
func (Topics) ServiceStatus() string {
	return TopicPrefix + "/service/status"
}

// DeviceIDFromAgentTopic extracts the device ID from an agent status topic.
func DeviceIDFromAgentTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "agent" || parts[3] != "status" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
