package court

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SegmentHandler is called for every segment payload received from a camera.
// set is nil when the payload could not be decoded.
type SegmentHandler func(cameraID string, set *SegmentSet, err error)

// MQTTClient manages the broker connection and per-camera subscriptions
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	handler     SegmentHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT builds the client without connecting; Start connects once the
// handler's dependencies are in place.
// If neither MQTT_BROKER nor mqtt.broker is set, MQTT is disabled and this returns nil
func InitMQTT(config *Config, handler SegmentHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || len(config.Cameras) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no camera configuration provided")
	}

	client := &MQTTClient{
		config:  config,
		handler: handler,
	}
	client.client = mqtt.NewClient(client.options(broker))
	return client, nil
}

// options resolves credentials from the environment first, then the config file
func (c *MQTTClient) options(broker string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := envOr("MQTT_CLIENT_ID", c.config.MQTT.ClientID)
	if clientID == "" {
		clientID = "courtmesh"
	}
	opts.SetClientID(clientID)

	if username := envOr("MQTT_USERNAME", c.config.MQTT.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", c.config.MQTT.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // keep subscriptions across reconnects
	opts.SetOrderMatters(false) // cameras are processed independently

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("MQTT reconnecting...")
	})
	return opts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// connectWithRetry connects with exponential backoff capped at one minute
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
}

// onConnect subscribes to every camera topic
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to camera topics...")
	c.setConnected(true)

	for _, camera := range c.config.Cameras {
		if camera.Topic == "" {
			log.Printf("Warning: camera %s has no topic configured", camera.ID)
			continue
		}

		log.Printf("Subscribing to %s for camera %s", camera.Topic, camera.ID)
		token := client.Subscribe(camera.Topic, 0, c.createMessageHandler(camera.ID))
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", camera.Topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", camera.Topic)
		}
	}
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// createMessageHandler decodes segment payloads for one camera
func (c *MQTTClient) createMessageHandler(cameraID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("Received segments for %s (topic: %s, size: %d bytes)",
			cameraID, msg.Topic(), len(payload))

		set, err := ParseSegmentSet(payload)
		if err != nil {
			log.Printf("Error decoding segments for %s: %v", cameraID, err)
		}
		if c.handler != nil {
			c.handler(cameraID, set, err)
		}
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// CameraByTopic returns the camera ID subscribed to topic
func (c *MQTTClient) CameraByTopic(topic string) (string, bool) {
	for _, camera := range c.config.Cameras {
		if camera.Topic == topic {
			return camera.ID, true
		}
	}
	return "", false
}

// Client returns the underlying MQTT client for publishing
func (c *MQTTClient) Client() mqtt.Client {
	return c.client
}

// NewMQTTClientWithClient wraps an existing mqtt.Client, such as a MockClient in tests
func NewMQTTClientWithClient(client mqtt.Client, config *Config, handler SegmentHandler) *MQTTClient {
	return &MQTTClient{
		client:  client,
		config:  config,
		handler: handler,
	}
}

// Start subscribes immediately when the wrapped client is already connected,
// otherwise it connects in the background and subscribes from the connect handler.
func (c *MQTTClient) Start() {
	if c.client == nil {
		return
	}
	if c.client.IsConnected() {
		c.onConnect(c.client)
		return
	}
	go c.connectWithRetry()
}
