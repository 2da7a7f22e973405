// Package mqtt connects the service to an MQTT broker.
//
// The broker is optional. When enabled it carries two flows:
//
//	devremote ──retained state──▶ devremote/state/{deviceId}
//	agents    ──status─────────▶ devremote/agent/{deviceId}/status ──▶ registry.TouchSeen
//
// StatePublisher implements device.StateNotifier and mirrors every
// persisted state change as a retained message, so a device agent that
// reconnects receives its latest desired state immediately.
// AgentStatusListener turns agent heartbeats into lastSeen updates.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	states.SetNotifier(mqtt.NewStatePublisher(client))
//	err = mqtt.NewAgentStatusListener(client, registry).Start(ctx)
package mqtt
