package court

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes detection results to MQTT
type Publisher struct {
	client        mqtt.Client
	state         *StateTracker
	publishPrefix string
	qos           byte
	retain        bool
}

// NewPublisher creates a publisher on prefix MQTT_PUBLISH_PREFIX, then cfgPrefix,
// then "courtmesh". Combined messages are built from state.
func NewPublisher(client mqtt.Client, state *StateTracker, cfgPrefix string) *Publisher {
	prefix := envOr("MQTT_PUBLISH_PREFIX", cfgPrefix)
	if prefix == "" {
		prefix = "courtmesh"
	}
	if state == nil {
		state = NewStateTracker(nil)
	}

	return &Publisher{
		client:        client,
		state:         state,
		publishPrefix: prefix,
		qos:           0,
		retain:        true, // late subscribers get the latest calibration
	}
}

// Prefix returns the topic prefix
func (p *Publisher) Prefix() string { return p.publishPrefix }

// PublishResult publishes a camera result to {prefix}/{camera} and, on success,
// all known calibrations to {prefix}/calibrations
func (p *Publisher) PublishResult(result *CameraResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	topic := fmt.Sprintf("%s/%s", p.publishPrefix, result.CameraID)
	if err := p.publishJSON(topic, result); err != nil {
		log.Printf("Error publishing result for %s: %v", result.CameraID, err)
		return err
	}
	if result.OK() {
		log.Printf("Published calibration for %s: f=%.1f rms=%.3fpx",
			result.CameraID, result.Calibration.Intrinsics.Focal, result.Calibration.RMSError)
	} else {
		log.Printf("Published detection failure for %s: %s", result.CameraID, result.Error)
		return nil
	}

	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined calibrations: %v", err)
		return err
	}
	return nil
}

func (p *Publisher) publishCombined() error {
	calibrations := p.state.Calibrations()
	if len(calibrations) == 0 {
		return nil
	}
	message := map[string]interface{}{
		"cameras":   calibrations,
		"timestamp": time.Now().Unix(),
	}
	return p.publishJSON(fmt.Sprintf("%s/calibrations", p.publishPrefix), message)
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", topic, err)
	}
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
