package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/tracking"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Client publishes workflow phase transitions and confirmed attendances to
// an MQTT broker. Disabled configuration yields a nil client; all methods
// are nil-safe.
type Client struct {
	cfg    config.MQTTConfig
	client mqtt.Client
}

// NewClient creates and configures a new MQTT publisher.
func NewClient(cfg config.MQTTConfig) (*Client, error) {
	if !cfg.Enabled {
		log.Info("MQTT publisher is disabled in the configuration.")
		return nil, nil
	}

	brokerURL := fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infof("Connected to MQTT broker %s", brokerURL)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	})

	return &Client{
		cfg:    cfg,
		client: mqtt.NewClient(opts),
	}, nil
}

// Start connects to the broker. Initial connect failures are logged; the
// client reconnects on its own.
func (c *Client) Start() error {
	if c == nil {
		return nil
	}
	brokerURL := fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)
	log.Infof("Connecting to MQTT broker: %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker %s: %v", brokerURL, token.Error())
		return token.Error()
	}
	return nil
}

// Stop disconnects the client.
func (c *Client) Stop() {
	if c == nil || c.client == nil {
		return
	}
	if c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		c.client.Disconnect(250)
	}
}

// PublishPhase publishes the current workflow phase as retained state.
func (c *Client) PublishPhase(phase string) {
	if c == nil {
		return
	}
	topic := c.cfg.Topic + "/phase"
	c.publish(topic, true, map[string]string{"phase": phase})
}

// PublishAttendance publishes one confirmed attendance event.
func (c *Client) PublishAttendance(entity tracking.TrackedEntity) {
	if c == nil {
		return
	}
	topic := c.cfg.Topic + "/attendance"
	c.publish(topic, false, map[string]interface{}{
		"subject_ref":  entity.ID,
		"display_name": entity.DisplayName,
		"category":     entity.Category,
		"seen_at":      entity.LastSeenAt.Format(time.RFC3339),
	})
}

func (c *Client) publish(topic string, retained bool, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("Failed to marshal MQTT payload for %s: %v", topic, err)
		return
	}
	token := c.client.Publish(topic, 0, retained, data)
	// Fire and forget: a slow broker must never stall the workflow.
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Warnf("Failed to publish to %s: %v", topic, token.Error())
		}
	}()
}
