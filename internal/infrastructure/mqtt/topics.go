package mqtt

import "fmt"

// TopicPrefix is the root of every topic the bridge uses.
//
// Bridge topics follow the flat scheme graylogic/{category}/{protocol}/{target}.
const TopicPrefix = "graylogic"

// Topics builds bridge topic names.
//
//	topics := mqtt.Topics{}
//	topics.BridgeCommand("slobs", "scene")   // graylogic/command/slobs/scene
//	topics.BridgeState("slobs", "scenes")    // graylogic/state/slobs/scenes
type Topics struct{}

// BridgeCommand is where commands for one target arrive.
func (Topics) BridgeCommand(protocol, target string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, target)
}

// BridgeCommands matches commands for every target of a protocol.
func (Topics) BridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// BridgeAck is where command acknowledgements are published.
func (Topics) BridgeAck(protocol, target string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, target)
}

// BridgeState is the retained state topic for one target.
func (Topics) BridgeState(protocol, target string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, target)
}

// BridgeEvent carries one-shot notifications such as a scene switch.
func (Topics) BridgeEvent(protocol, event string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, protocol, event)
}

// BridgeHealth is the retained health topic, also used for the Last Will.
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// CommandTarget extracts the target from a command topic, reporting false
// if topic is not graylogic/command/{protocol}/{target}.
func (t Topics) CommandTarget(protocol, topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/command/%s/", TopicPrefix, protocol)
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return "", false
	}
	target := topic[len(prefix):]
	for i := 0; i < len(target); i++ {
		if target[i] == '/' {
			return "", false
		}
	}
	return target, true
}
