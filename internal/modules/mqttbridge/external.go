package mqttbridge

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// externalClient connects the bridge out to an already-running broker.
type externalClient struct {
	client paho.Client
	log    *zap.Logger
}

func newExternalClient(log *zap.Logger, brokerURL, username, password string) (*externalClient, error) {
	opts := paho.NewClientOptions().AddBroker(brokerURL)
	opts.SetClientID("tvad-bridge")
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &externalClient{client: client, log: log}, nil
}

func (c *externalClient) publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

func (c *externalClient) subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := c.client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (c *externalClient) close() {
	c.client.Disconnect(250)
}
