package relay

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// serve runs one exchange for a received datagram and replies to its sender
func (r *Relay) serve(d Datagram) error {
	id := xid.New().String()
	log := r.log.With().Str("exchange", id).Stringer("peer", d.Peer).Logger()

	r.stats.inc(CntDatagrams)
	log.Debug().Int("bytes", len(d.Data)).Stringer("data", d.Data).Msg("request received")
	r.emit(Event{Kind: EventRequest, Exchange: id, Peer: d.Peer, Data: d.Data})

	if d.Dropped > 0 {
		r.stats.inc(CntTruncated)
		r.stats.add(CntDroppedBytes, d.Dropped)
		log.Warn().
			Int("dropped", d.Dropped).
			Int("max", r.cfg.MaxDatagramSize).
			Msg("request truncated")
		r.emit(Event{Kind: EventDropped, Exchange: id, Peer: d.Peer, Reason: "datagram truncated"})
	}

	r.sem <- struct{}{}
	resp, err := r.transact(log, id, d.Peer, d.Data)
	<-r.sem

	switch {
	case err == nil:
		return r.reply(log, id, d.Peer, resp)
	case errors.Is(err, ErrResponseTimeout):
		if len(r.cfg.TimeoutReply) > 0 {
			if err := r.net.SendDatagram(r.cfg.TimeoutReply, d.Peer); err != nil {
				r.stats.inc(CntTransportErrors)
				log.Error().Err(err).Msg("timeout reply failed")
				return err
			}
		}
		return err
	default:
		return err
	}
}

func (r *Relay) reply(log zerolog.Logger, id string, peer net.Addr, resp Frame) error {
	if err := r.net.SendDatagram(resp, peer); err != nil {
		r.stats.inc(CntTransportErrors)
		log.Error().Err(err).Msg("reply failed")
		r.emit(Event{Kind: EventError, Exchange: id, Peer: peer, Err: err})
		return err
	}
	r.stats.inc(CntResponses)
	log.Debug().Int("bytes", len(resp)).Stringer("data", resp).Msg("response sent")
	r.emit(Event{Kind: EventResponse, Exchange: id, Peer: peer, Data: resp})
	return nil
}

// Exchange writes req to the serial device and returns the delimited
// response, waiting for its turn on the serial line behind the relay worker
// and other callers. ctx bounds only the wait for that turn; once the
// request is written the exchange runs to completion or ResponseTimeout.
func (r *Relay) Exchange(ctx context.Context, req Frame) (Frame, error) {
	if r.State() != StateRunning {
		return nil, ErrNotRunning
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()

	if r.State() != StateRunning {
		return nil, ErrNotRunning
	}

	id := xid.New().String()
	log := r.log.With().Str("exchange", id).Logger()
	r.emit(Event{Kind: EventRequest, Exchange: id, Data: req})
	resp, err := r.transact(log, id, nil, req)
	if err != nil {
		return nil, err
	}
	r.stats.inc(CntResponses)
	r.emit(Event{Kind: EventResponse, Exchange: id, Data: resp})
	return resp, nil
}

// transact writes one request and reads one delimited response. The caller
// holds the serial semaphore.
func (r *Relay) transact(log zerolog.Logger, id string, peer net.Addr, req Frame) (Frame, error) {
	n, err := r.serial.Write(req)
	if err == nil && n != len(req) {
		err = transportErr("serial write", io.ErrShortWrite)
	}
	if err != nil {
		r.stats.inc(CntTransportErrors)
		log.Error().Err(err).Int("written", n).Msg("serial write failed, exchange aborted")
		r.emit(Event{Kind: EventError, Exchange: id, Peer: peer, Err: err})
		return nil, err
	}
	r.emit(Event{Kind: EventWritten, Exchange: id, Peer: peer, Data: req})

	resp, err := r.serial.ReadUntil(r.cfg.Delimiter, r.cfg.MaxResponseSize, r.cfg.ResponseTimeout)
	switch {
	case err == nil:
		return resp, nil

	case errors.Is(err, ErrResponseTimeout):
		r.stats.inc(CntTimeouts)
		r.stats.add(CntDroppedBytes, len(resp))
		log.Warn().
			Dur("timeout", r.cfg.ResponseTimeout).
			Int("discarded", len(resp)).
			Stringer("partial", resp).
			Msg("response timeout")
		r.emit(Event{Kind: EventTimeout, Exchange: id, Peer: peer, Data: resp, Err: ErrResponseTimeout})
		if len(resp) > 0 {
			r.emit(Event{Kind: EventDropped, Exchange: id, Peer: peer, Data: resp, Reason: "response timeout"})
		}
		return nil, ErrResponseTimeout

	case errors.Is(err, ErrFrameOverflow):
		r.stats.add(CntDroppedBytes, len(resp))
		log.Warn().
			Int("discarded", len(resp)).
			Int("max", r.cfg.MaxResponseSize).
			Msg("response exceeds size limit")
		r.emit(Event{Kind: EventDropped, Exchange: id, Peer: peer, Data: resp, Reason: "response overflow"})
		return nil, ErrFrameOverflow

	default:
		r.stats.inc(CntTransportErrors)
		log.Error().Err(err).Msg("serial read failed")
		r.emit(Event{Kind: EventError, Exchange: id, Peer: peer, Err: err})
		return nil, err
	}
}
