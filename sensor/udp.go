// Package sensor is the inbound boundary: it turns hardware datagrams or
// simulated motion into timestamped measurement samples for the estimator.
// Samples are assumed to be expressed in the vehicle frame already;
// coordinate transforms live upstream of this boundary.
package sensor

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"

	"gca-engine/estimator"
)

// Source delivers measurement samples on a channel. Implementations run
// their own goroutine via Run and close nothing: the engine owns the
// channel lifecycle through context cancellation.
type Source interface {
	Samples() <-chan estimator.Sample
	Run(ctx context.Context) error
}

const maxPacketSize = 2048

// UDPSource listens for sensor datagrams from the vehicle hardware.
type UDPSource struct {
	conn    *net.UDPConn
	out     chan estimator.Sample
	log     zerolog.Logger
	dropped atomic.Uint64
	badPkts atomic.Uint64
}

func NewUDPSource(listen string, log zerolog.Logger) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	conn.SetReadBuffer(256 * 1024)

	return &UDPSource{
		conn: conn,
		out:  make(chan estimator.Sample, 256),
		log:  log.With().Str("component", "sensor-udp").Logger(),
	}, nil
}

func (s *UDPSource) Samples() <-chan estimator.Sample { return s.out }

// Dropped reports samples discarded because the estimator fell behind.
func (s *UDPSource) Dropped() uint64 { return s.dropped.Load() }

func (s *UDPSource) Run(ctx context.Context) error {
	s.log.Info().Str("addr", s.conn.LocalAddr().String()).Msg("listening")

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, maxPacketSize)
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error().Err(err).Msg("read")
			continue
		}

		sample, err := ParsePacket(buf[:n])
		if err != nil {
			s.badPkts.Add(1)
			s.log.Debug().Err(err).Msg("bad packet")
			continue
		}

		select {
		case s.out <- sample:
		default:
			// consumer behind; dropping the new sample keeps the queue's
			// arrival order intact
			s.dropped.Add(1)
		}
	}
}
