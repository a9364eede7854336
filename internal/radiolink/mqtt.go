package radiolink

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tiiuae/quickscan/internal/mission"
)

const (
	DefaultBroker     = "ssl://mqtt.googleapis.com:8883"
	DefaultProjectID  = "auto-fleet-mgnt"
	DefaultRegion     = "europe-west1"
	DefaultRegistryID = "fleet-registry"
	DefaultAlgorithm  = "RS256"
	DefaultPrivateKey = "/enclave/rsa_private.pem"
)

// MQTT parameters
const (
	QoS      = 1 // QoS 2 isn't supported in GCP
	Retain   = false
	Username = "unused" // always this value in GCP

	connectTimeout = 5 * time.Second
	tokenLifetime  = 24 * time.Hour
)

type Config struct {
	DeviceID   string
	Broker     string
	PrivateKey string
	ProjectID  string
	Region     string
	RegistryID string
	Algorithm  string
}

func (c Config) withDefaults() Config {
	if c.Broker == "" {
		c.Broker = DefaultBroker
	}
	if c.ProjectID == "" {
		c.ProjectID = DefaultProjectID
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.RegistryID == "" {
		c.RegistryID = DefaultRegistryID
	}
	if c.Algorithm == "" {
		c.Algorithm = DefaultAlgorithm
	}
	if c.PrivateKey == "" {
		c.PrivateKey = DefaultPrivateKey
	}
	return c
}

func (c Config) clientID() string {
	return fmt.Sprintf("projects/%s/locations/%s/registries/%s/devices/%s",
		c.ProjectID, c.Region, c.RegistryID, c.DeviceID)
}

// password signs the JWT used as the MQTT password.
func password(c Config, keyData []byte, now time.Time) (string, error) {
	var key interface{}
	var err error
	switch c.Algorithm {
	case "RS256":
		key, err = jwt.ParseRSAPrivateKeyFromPEM(keyData)
	case "ES256":
		key, err = jwt.ParseECPrivateKeyFromPEM(keyData)
	default:
		return "", errors.WithMessagef(mission.ErrConfiguration, "unknown algorithm: %s", c.Algorithm)
	}
	if err != nil {
		return "", errors.WithMessagef(mission.ErrConfiguration, "private key: %v", err)
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(c.Algorithm), &jwt.StandardClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(tokenLifetime).Unix(),
		Audience:  c.ProjectID,
	})
	return token.SignedString(key)
}

// newMQTTClient connects to the broker, retrying until ctx is done.
func newMQTTClient(ctx context.Context, c Config) (mqtt.Client, error) {
	log.Infof("MQTT: address: %v", c.Broker)
	log.Infof("MQTT: client ID: %v", c.clientID())

	keyData, err := os.ReadFile(c.PrivateKey)
	if err != nil {
		return nil, errors.WithMessagef(mission.ErrConfiguration, "read private key: %v", err)
	}
	pass, err := password(c, keyData, time.Now())
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(c.clientID()).
		SetUsername(Username).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetPassword(pass).
		SetProtocolVersion(4). // Use MQTT 3.1.1
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)

	for {
		log.Info("MQTT: connecting...")
		tok := client.Connect()
		if tok.WaitTimeout(connectTimeout) {
			if err := tok.Error(); err != nil {
				return nil, errors.WithMessagef(mission.ErrCollaborator, "mqtt connect: %v", err)
			}
			log.Info("MQTT: ..connected")
			return client, nil
		}

		log.Warn("MQTT: connection timeout")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}
