package publish

import (
	"context"
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher delivers messages to an MQTT broker on a single topic.
type MQTTPublisher struct {
	brokerURL string
	clientID  string
	topic     string
	client    mqtt.Client
}

// NewMQTT creates an MQTT publisher. No connection is made until Connect.
func NewMQTT(brokerURL, clientID, topic string) *MQTTPublisher {
	return &MQTTPublisher{
		brokerURL: brokerURL,
		clientID:  clientID,
		topic:     topic,
	}
}

func (p *MQTTPublisher) Connect(_ context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(p.brokerURL).
		SetClientID(p.clientID).
		SetAutoReconnect(true)

	p.client = mqtt.NewClient(opts)
	token := p.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s failed: %w", p.brokerURL, err)
	}
	return nil
}

func (p *MQTTPublisher) Publish(_ context.Context, msg Message) error {
	if p.client == nil {
		return fmt.Errorf("mqtt: publish before connect")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mqtt: marshal message: %w", err)
	}
	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish failed: %w", err)
	}
	return nil
}

func (p *MQTTPublisher) Disconnect(_ context.Context) error {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}
