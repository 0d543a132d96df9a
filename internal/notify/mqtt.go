package notify

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vrulab/rigsync/internal/logger"
)

// Таймаут подключения к брокеру.
const mqttConnectTimeout = 5 * time.Second

// MQTTNotifier публикует события в MQTT брокер: топик = prefix/room.
type MQTTNotifier struct {
	client mqtt.Client
	prefix string
}

// NewMQTT подключается к брокеру (tcp://host:1883) и возвращает нотификатор.
func NewMQTT(broker, clientID, topicPrefix string) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return &MQTTNotifier{client: client, prefix: topicPrefix}, nil
}

// Notify публикует событие как JSON {event, payload} в prefix/room (QoS 0).
func (m *MQTTNotifier) Notify(event string, payload map[string]interface{}, room string) {
	msg, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		logger.Error("mqtt marshal %s: %v", event, err)
		return
	}
	topic := m.prefix + "/" + room
	m.client.Publish(topic, 0, false, msg)
}

// Close отключается от брокера.
func (m *MQTTNotifier) Close() {
	m.client.Disconnect(250)
}
