package relay

// drain reads device output that arrived outside an exchange. It stops when
// nothing more is immediately available, when DrainCap bytes were read in
// this cycle or after DrainMaxReads reads, so dispatch always gets its turn.
// Bytes left on the device past the cap are picked up next cycle.
func (r *Relay) drain() error {
	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	total := 0
	for i := 0; i < r.cfg.DrainMaxReads; i++ {
		limit := min(r.cfg.DrainChunk, r.cfg.DrainCap-total)
		if limit <= 0 {
			r.log.Debug().Int("bytes", total).Msg("drain cap reached, yielding")
			return nil
		}

		chunk, err := r.serial.ReadAvailable(limit)
		if err != nil {
			r.stats.inc(CntTransportErrors)
			r.log.Error().Err(err).Msg("drain failed")
			r.emit(Event{Kind: EventError, Err: err})
			return err
		}
		if len(chunk) == 0 {
			return nil
		}

		total += len(chunk)
		r.stats.add(CntDrainedBytes, len(chunk))
		r.log.Info().
			Int("bytes", len(chunk)).
			Stringer("data", chunk).
			Msg("unsolicited device output")
		r.emit(Event{Kind: EventUnsolicited, Data: chunk})

		if r.forward != nil {
			if err := r.net.SendDatagram(chunk, r.forward); err != nil {
				r.stats.inc(CntTransportErrors)
				r.log.Warn().Err(err).Stringer("forward", r.forward).Msg("forward failed")
				r.emit(Event{Kind: EventError, Err: err})
				continue
			}
			r.stats.inc(CntForwardedFrames)
		}
	}

	r.log.Debug().Int("bytes", total).Int("reads", r.cfg.DrainMaxReads).Msg("drain read limit reached, yielding")
	return nil
}
