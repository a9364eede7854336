package flymavlink

import (
	"strconv"
	"strings"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/pkg/errors"
	"github.com/tiiuae/quickscan/internal/mission"
)

const (
	DefaultConnection = "serial:/dev/serial0:57600"
	defaultBaud       = 57600
)

// ParseEndpoint turns a connection string into a gomavlib endpoint:
//
//	serial:/dev/serial0[:baud]
//	udp:0.0.0.0:14550      listen for the autopilot
//	udpclient:host:14550
//	tcp:127.0.0.1:5760
func ParseEndpoint(connection string) (gomavlib.EndpointConf, error) {
	if connection == "" {
		connection = DefaultConnection
	}

	scheme, rest, ok := strings.Cut(connection, ":")
	if !ok || rest == "" {
		return nil, errors.WithMessagef(mission.ErrConfiguration, "invalid vehicle connection '%s'", connection)
	}

	switch scheme {
	case "serial":
		device, baud := rest, defaultBaud
		if i := strings.LastIndex(rest, ":"); i > 0 {
			b, err := strconv.Atoi(rest[i+1:])
			if err != nil || b <= 0 {
				return nil, errors.WithMessagef(mission.ErrConfiguration, "invalid baud rate in '%s'", connection)
			}
			device, baud = rest[:i], b
		}
		return gomavlib.EndpointSerial{Device: device, Baud: baud}, nil
	case "udp":
		return gomavlib.EndpointUDPServer{Address: rest}, nil
	case "udpclient":
		return gomavlib.EndpointUDPClient{Address: rest}, nil
	case "tcp":
		return gomavlib.EndpointTCPClient{Address: rest}, nil
	}
	return nil, errors.WithMessagef(mission.ErrConfiguration, "unknown vehicle connection type '%s'", scheme)
}
