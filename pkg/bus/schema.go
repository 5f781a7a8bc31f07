package bus

import "fmt"

// Redis channel naming
//
// One logical channel per event type, namespaced by instance name:
//   warren:{instance_name}:events:{event_type}
// The wildcard pattern below subscribes a node to every type at once.

// EventChannel returns the Pub/Sub channel for one event type.
func EventChannel(instanceName string, t EventType) string {
	return fmt.Sprintf("warren:%s:events:%s", instanceName, t)
}

// EventChannelPattern returns the PSUBSCRIBE pattern matching all event
// channels of an instance.
func EventChannelPattern(instanceName string) string {
	return fmt.Sprintf("warren:%s:events:*", instanceName)
}
