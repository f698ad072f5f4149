// Package socketio is a minimal Socket.IO v4 client over an Engine.IO v4
// websocket. It covers what a door unit needs: the default namespace,
// server pings, inbound events and outbound events. Polling transports,
// binary attachments and acknowledgements are not supported.
package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Engine.IO packet types.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO packet types, carried inside an Engine.IO message.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
)

// packetKind is what the client does with a decoded packet.
type packetKind int

const (
	kindIgnore packetKind = iota
	kindOpen
	kindClose
	kindPing
	kindNamespaceConnect
	kindNamespaceDisconnect
	kindEvent
	kindConnectError
)

// openPayload is the Engine.IO handshake body.
type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

type packet struct {
	kind packetKind
	open openPayload
	data []byte // event array or error body
}

var errEmptyPacket = errors.New("empty packet")

// parsePacket decodes one websocket text message.
func parsePacket(msg []byte) (packet, error) {
	if len(msg) == 0 {
		return packet{}, errEmptyPacket
	}

	switch msg[0] {
	case engineOpen:
		var p packet
		p.kind = kindOpen
		if err := json.Unmarshal(msg[1:], &p.open); err != nil {
			return packet{}, fmt.Errorf("open packet: %w", err)
		}
		return p, nil
	case engineClose:
		return packet{kind: kindClose}, nil
	case enginePing:
		return packet{kind: kindPing}, nil
	case enginePong, engineNoop:
		return packet{kind: kindIgnore}, nil
	case engineMessage:
		return parseSocketPacket(msg[1:])
	default:
		return packet{}, fmt.Errorf("unknown engine packet type %q", msg[0])
	}
}

func parseSocketPacket(msg []byte) (packet, error) {
	if len(msg) == 0 {
		return packet{}, errEmptyPacket
	}
	body := stripNamespaceAndAck(msg[1:])

	switch msg[0] {
	case socketConnect:
		return packet{kind: kindNamespaceConnect, data: body}, nil
	case socketDisconnect:
		return packet{kind: kindNamespaceDisconnect}, nil
	case socketEvent:
		if len(body) == 0 {
			return packet{}, errors.New("event packet without data")
		}
		return packet{kind: kindEvent, data: body}, nil
	case socketConnectError:
		return packet{kind: kindConnectError, data: body}, nil
	case socketAck:
		return packet{kind: kindIgnore}, nil
	default:
		return packet{}, fmt.Errorf("unsupported socket packet type %q", msg[0])
	}
}

// stripNamespaceAndAck removes an optional "/nsp," prefix and ack id digits.
func stripNamespaceAndAck(b []byte) []byte {
	if len(b) > 0 && b[0] == '/' {
		for i, c := range b {
			if c == ',' {
				b = b[i+1:]
				break
			}
			if i == len(b)-1 {
				return nil
			}
		}
	}
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	return b[i:]
}

// Outbound packets.
const (
	pongPacket    = "3"
	connectPacket = "40"
	eventPrefix   = "42"
)
