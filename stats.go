package relay

import "sync"

// Counter indexes the relay counters
type Counter int

const (
	CntDatagrams Counter = iota
	CntResponses
	CntTimeouts
	CntTransportErrors
	CntDrainedBytes
	CntForwardedFrames
	CntDroppedBytes
	CntTruncated

	cntNum = iota
)

type counters struct {
	sync.Mutex
	ca [cntNum]uint64
}

func (c *counters) add(cnt Counter, n int) {
	if n <= 0 {
		return
	}
	c.Lock()
	defer c.Unlock()
	c.ca[cnt] += uint64(n)
}

func (c *counters) inc(cnt Counter) {
	c.add(cnt, 1)
}

func (c *counters) get(cnt Counter) uint64 {
	c.Lock()
	defer c.Unlock()
	return c.ca[cnt]
}

// Stats is a snapshot of the relay counters
type Stats struct {
	Datagrams       uint64 // requests received
	Responses       uint64 // responses returned to peers
	Timeouts        uint64 // exchanges that ended in ErrResponseTimeout
	TransportErrors uint64
	DrainedBytes    uint64 // unsolicited bytes drained from the device
	ForwardedFrames uint64 // drained chunks sent to the forward address
	DroppedBytes    uint64 // bytes discarded on timeout, overflow or truncation
	Truncated       uint64 // request datagrams longer than the maximum size
}

func (c *counters) snapshot() Stats {
	c.Lock()
	defer c.Unlock()
	return Stats{
		Datagrams:       c.ca[CntDatagrams],
		Responses:       c.ca[CntResponses],
		Timeouts:        c.ca[CntTimeouts],
		TransportErrors: c.ca[CntTransportErrors],
		DrainedBytes:    c.ca[CntDrainedBytes],
		ForwardedFrames: c.ca[CntForwardedFrames],
		DroppedBytes:    c.ca[CntDroppedBytes],
		Truncated:       c.ca[CntTruncated],
	}
}
