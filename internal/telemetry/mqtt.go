package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// MQTT topics for the mirrored logs.
const (
	TopicBattery = "inkframe/battery"
	TopicErrors  = "inkframe/errors"
)

// batteryPayload is the JSON published per battery sample.
type batteryPayload struct {
	Timestamp string  `json:"timestamp"`
	Session   string  `json:"session"`
	VoltageV  float64 `json:"voltage_v"`
	LevelPct  int     `json:"level_pct"`
}

// errorPayload is the JSON published per error line.
type errorPayload struct {
	Timestamp string `json:"timestamp"`
	Session   string `json:"session"`
	Message   string `json:"message"`
}

// MQTTPublisher mirrors telemetry to a broker. All waits are bounded;
// a dead broker costs a few seconds per activation, never a hang.
type MQTTPublisher struct {
	client paho.Client
}

// NewMQTTPublisher connects to the broker. Connect failure is returned
// rather than retried: the next activation will try again.
func NewMQTTPublisher(broker, clientID string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("telemetry: mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect: %w", err)
	}
	return &MQTTPublisher{client: client}, nil
}

func (p *MQTTPublisher) PublishBattery(session string, voltage float64, levelPct int) error {
	payload, err := json.Marshal(batteryPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Session:   session,
		VoltageV:  voltage,
		LevelPct:  levelPct,
	})
	if err != nil {
		return err
	}
	return p.publish(TopicBattery, payload)
}

func (p *MQTTPublisher) PublishError(session, msg string) error {
	payload, err := json.Marshal(errorPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Session:   session,
		Message:   msg,
	})
	if err != nil {
		return err
	}
	return p.publish(TopicErrors, payload)
}

func (p *MQTTPublisher) publish(topic string, payload []byte) error {
	// QoS 0: a lost sample is cheaper than a delayed suspend.
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return token.Error()
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

// FakePublisher records published entries for tests.
type FakePublisher struct {
	Errors    []string
	Batteries []float64
	Closed    bool
	Err       error
}

func (f *FakePublisher) PublishError(session, msg string) error {
	if f.Err != nil {
		return f.Err
	}
	f.Errors = append(f.Errors, msg)
	return nil
}

func (f *FakePublisher) PublishBattery(session string, voltage float64, levelPct int) error {
	if f.Err != nil {
		return f.Err
	}
	f.Batteries = append(f.Batteries, voltage)
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
