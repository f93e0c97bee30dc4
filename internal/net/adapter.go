package net

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"tradecore/internal/wpool"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	readDialTimeout          = 5 * time.Second
	inboundReaders           = 2
)

// VenueAdapter is the live-mode counterpart to the backtest fill simulator:
// it dials a venue over TCP, speaks the frame taxonomy in this package, and
// exposes a channel of decoded inbound messages alongside outbound send
// methods. The execution engine and risk gate are unaware of the
// distinction between this and the simulator.
type VenueAdapter struct {
	conn         net.Conn
	senderCompID string
	heartbeat    time.Duration

	Inbound chan any

	pool wpool.Pool
	t    *tomb.Tomb
}

// Dial connects to a venue; the Logon is sent later, by Start.
func Dial(address, senderCompID string) (*VenueAdapter, error) {
	conn, err := net.DialTimeout("tcp", address, readDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("net: dial venue: %w", err)
	}

	a := &VenueAdapter{
		conn:         conn,
		senderCompID: senderCompID,
		heartbeat:    defaultHeartbeatInterval,
		Inbound:      make(chan any, 256),
		pool:         wpool.New(inboundReaders, 0),
	}
	return a, nil
}

// Start begins the read pump and heartbeat loop under a managed tomb.
func (a *VenueAdapter) Start() error {
	a.t = &tomb.Tomb{}
	if err := a.sendLogon(); err != nil {
		return err
	}
	a.t.Go(func() error {
		a.pool.Setup(a.t, a.decodeTask)
		return nil
	})
	a.t.Go(a.readLoop)
	a.t.Go(a.heartbeatLoop)
	return nil
}

// Shutdown logs out and tears down the adapter's goroutines.
func (a *VenueAdapter) Shutdown() error {
	_ = a.send(MsgLogout, Logout{Text: "client shutdown"}.encode())
	a.t.Kill(nil)
	err := a.t.Wait()
	if closeErr := a.conn.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("net: error closing venue connection")
	}
	return err
}

func (a *VenueAdapter) sendLogon() error {
	return a.send(MsgLogon, Logon{SenderCompID: a.senderCompID, HeartBtInt: a.heartbeat}.encode())
}

func (a *VenueAdapter) send(t MsgType, body []byte) error {
	frame := EncodeFrame(t, body)
	_, err := a.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("net: write frame: %w", err)
	}
	return nil
}

// SendNewOrderSingle routes an outbound order to the venue.
func (a *VenueAdapter) SendNewOrderSingle(m NewOrderSingle) error {
	return a.send(MsgNewOrderSingle, m.encode())
}

// SendOrderCancelRequest requests cancellation of a working order.
func (a *VenueAdapter) SendOrderCancelRequest(m OrderCancelRequest) error {
	return a.send(MsgOrderCancelRequest, m.encode())
}

// SendMarketDataRequest subscribes to book or trade updates for a symbol.
func (a *VenueAdapter) SendMarketDataRequest(m MarketDataRequest) error {
	return a.send(MsgMarketDataRequest, m.encode())
}

func (a *VenueAdapter) heartbeatLoop() error {
	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-a.t.Dying():
			return nil
		case <-ticker.C:
			if err := a.send(MsgHeartbeat, Heartbeat{}.encode()); err != nil {
				log.Error().Err(err).Msg("net: heartbeat send failed")
				return err
			}
		}
	}
}

// readLoop pulls length-prefixed frames off the wire and hands decoding off
// to the worker pool so a slow consumer on Inbound cannot stall the socket
// read.
func (a *VenueAdapter) readLoop() error {
	reader := bufio.NewReader(a.conn)
	header := make([]byte, 3)
	for {
		select {
		case <-a.t.Dying():
			return nil
		default:
		}

		if _, err := io.ReadFull(reader, header); err != nil {
			if err == io.EOF {
				log.Info().Msg("net: venue connection closed")
				return nil
			}
			log.Error().Err(err).Msg("net: error reading frame header")
			return err
		}
		bodyLen := int(binary.BigEndian.Uint16(header[1:3]))
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(reader, body); err != nil {
			log.Error().Err(err).Msg("net: error reading frame body")
			return err
		}

		raw := append(append([]byte{}, header...), body...)
		a.pool.AddTask(raw)
	}
}

func (a *VenueAdapter) decodeTask(t *tomb.Tomb, task any) error {
	raw, ok := task.([]byte)
	if !ok {
		return ErrFrameTooShort
	}
	frame, err := DecodeFrame(raw)
	if err != nil {
		log.Error().Err(err).Msg("net: malformed frame")
		return nil
	}
	msg, err := Decode(frame)
	if err != nil {
		log.Error().Err(err).Str("frame", frame.String()).Msg("net: undecodable frame")
		return nil
	}
	select {
	case a.Inbound <- msg:
	case <-t.Dying():
	}
	return nil
}
