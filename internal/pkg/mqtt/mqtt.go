package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

const DefaultDiscoveryPrefix = "homeassistant"

type Config struct {
	Host            string
	Port            int
	Username        string
	Password        string
	DiscoveryPrefix string
}

// client is the subset of paho_mqtt.Client the sink uses.
type client interface {
	Connect() paho_mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho_mqtt.Token
}

type service struct {
	client client
	device model.Device
	prefix string
	logger *zap.Logger
}

// NewClient builds a paho client that reconnects on its own. onConnect runs
// after every successful (re)connect.
func NewClient(cfg Config, onConnect func()) paho_mqtt.Client {
	opts := paho_mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID("vevor-bridge-" + uuid.NewString()[:8]).
		SetProtocolVersion(4).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetOnConnectHandler(func(paho_mqtt.Client) {
			zap.L().Info("connected to mqtt", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
			if onConnect != nil {
				onConnect()
			}
		}).
		SetConnectionLostHandler(func(_ paho_mqtt.Client, err error) {
			zap.L().Warn("mqtt connection lost", zap.Error(err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return paho_mqtt.NewClient(opts)
}

func New(client client, device model.Device, discoveryPrefix string) *service {
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return &service{
		client: client,
		device: device,
		prefix: discoveryPrefix,
		logger: zap.L(),
	}
}

func (s *service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(time.Second * 5)
	if res {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}

func (s *service) Close() error {
	s.client.Disconnect(250)
	return nil
}
