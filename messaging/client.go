package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"fleetcore/config"
)

type MessageHandler func(topic string, payload []byte)

// Publisher sends raw payloads to a topic. Client implements it.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

var ErrNotConnected = errors.New("messaging not connected")

const (
	publishTimeout = 5 * time.Second
	mqttQoS        = 1
)

// Client carries fleet commands in and events out over Kafka or MQTT,
// whichever the config names.
type Client struct {
	mu   sync.RWMutex
	cfg  *config.MessagingConfig
	subs map[string]MessageHandler

	kafkaWriter  *kafka.Writer
	kafkaReaders []*kafka.Reader
	ctx          context.Context
	cancel       context.CancelFunc

	mqttConn mqtt.Client
}

func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{cfg: cfg, subs: make(map[string]MessageHandler)}
}

func (c *Client) Backend() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Backend
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.cfg.Backend {
	case "kafka":
		return c.connectKafka()
	case "mqtt":
		return c.connectMQTT()
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.cfg.Backend)
	}
}

func (c *Client) connectKafka() error {
	brokers := c.cfg.Kafka.Brokers
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	var conn *kafka.Conn
	var err error
	for _, broker := range brokers {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conn, err = kafka.DialContext(ctx, "tcp", broker)
		cancel()
		if err == nil {
			log.Printf("messaging: kafka connected to %s", broker)
			break
		}
	}
	if err != nil {
		return fmt.Errorf("kafka connect: %w", err)
	}
	ensureTopics(conn, c.cfg.CommandTopic, c.cfg.EventTopic)
	conn.Close()

	c.ctx, c.cancel = context.WithCancel(context.Background())
	// Snapshots go out every few ticks; small batches keep them fresh.
	c.kafkaWriter = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	for topic, h := range c.subs {
		c.startReader(topic, h)
	}
	return nil
}

// ensureTopics creates the fleet topics on the controller. Failure is only
// logged; most brokers auto-create on first write.
func ensureTopics(conn *kafka.Conn, topics ...string) {
	controller, err := conn.Controller()
	if err != nil {
		log.Printf("messaging: cannot find controller for topic creation: %v", err)
		return
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	cc, err := kafka.Dial("tcp", addr)
	if err != nil {
		log.Printf("messaging: cannot connect to controller %s: %v", addr, err)
		return
	}
	defer cc.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		if t != "" {
			configs = append(configs, kafka.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
		}
	}
	if err := cc.CreateTopics(configs...); err != nil {
		log.Printf("messaging: topic auto-create: %v", err)
	}
}

// startReader consumes topic from the latest offset: commands sent while
// the core was down are stale by the time it returns.
func (c *Client) startReader(topic string, h MessageHandler) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Kafka.Brokers,
		Topic:       topic,
		GroupID:     c.cfg.Kafka.GroupID,
		StartOffset: kafka.LastOffset,
	})
	c.kafkaReaders = append(c.kafkaReaders, r)
	ctx := c.ctx
	go func() {
		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("messaging: kafka reader %s stopped: %v", topic, err)
				}
				return
			}
			h(msg.Topic, msg.Value)
		}
	}()
}

func (c *Client) connectMQTT() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("messaging: mqtt connection lost: %v", err)
		}).
		SetOnConnectHandler(c.resubscribeMQTT)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect: timed out reaching %s", broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	log.Printf("messaging: mqtt connected to %s", broker)
	c.mqttConn = client
	return nil
}

// resubscribeMQTT restores subscriptions after a reconnect; the session is
// clean so the broker forgets them.
func (c *Client) resubscribeMQTT(client mqtt.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic, h := range c.subs {
		client.Subscribe(topic, mqttQoS, mqttCallback(h))
	}
}

func mqttCallback(h MessageHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	}
}

func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.kafkaWriter != nil:
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		return c.kafkaWriter.WriteMessages(ctx, kafka.Message{Topic: topic, Value: payload})
	case c.mqttConn != nil:
		if !c.mqttConn.IsConnected() {
			return fmt.Errorf("mqtt: %w", ErrNotConnected)
		}
		token := c.mqttConn.Publish(topic, mqttQoS, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("mqtt publish to %s timed out", topic)
		}
		return token.Error()
	default:
		return ErrNotConnected
	}
}

// PublishEnvelope encodes and publishes a protocol envelope to the given topic.
func (c *Client) PublishEnvelope(topic string, env interface{ Encode() ([]byte, error) }) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return c.Publish(topic, data)
}

// Subscribe registers h for topic. The subscription survives reconnects.
func (c *Client) Subscribe(topic string, h MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs[topic] = h
	switch {
	case c.kafkaWriter != nil:
		c.startReader(topic, h)
		return nil
	case c.mqttConn != nil:
		token := c.mqttConn.Subscribe(topic, mqttQoS, mqttCallback(h))
		token.Wait()
		return token.Error()
	default:
		return ErrNotConnected
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mqttConn != nil {
		return c.mqttConn.IsConnected()
	}
	return c.kafkaWriter != nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	for _, r := range c.kafkaReaders {
		r.Close()
	}
	c.kafkaReaders = nil
	if c.kafkaWriter != nil {
		c.kafkaWriter.Close()
		c.kafkaWriter = nil
	}
	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
}
