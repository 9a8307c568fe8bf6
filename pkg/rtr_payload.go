package pkg

import (
	"net/netip"
	"time"
)

// Action is the RTR update action carried in a prefix PDU's flags field.
type Action uint8

const (
	ActionWithdraw Action = iota
	ActionAnnounce
)

func (a Action) String() string {
	if a == ActionAnnounce {
		return "announce"
	}
	return "withdraw"
}

// RouteOrigin is one ROA payload from the RTR stream: an authorized prefix,
// the maximum length it may be announced at, and the origin AS. Route origins
// are immutable once decoded.
type RouteOrigin struct {
	Prefix netip.Prefix
	MaxLen uint8 // 0 means unset
	ASN    uint32
}

// EffectiveMaxLen returns the max length to validate against. A ROA without
// an explicit max length authorizes only its own prefix length.
func (o RouteOrigin) EffectiveMaxLen() uint8 {
	if o.MaxLen == 0 {
		return uint8(o.Prefix.Bits())
	}
	return o.MaxLen
}

// Update is one (action, payload) pair from a data exchange.
type Update struct {
	Action Action
	Origin RouteOrigin
}

// UpdateBatch holds the ordered updates of one RTR data exchange, from Cache
// Response through End of Data. A batch is delivered to the sink exactly once
// and consumed on delivery.
type UpdateBatch struct {
	// Reset marks an exchange that answers a Reset Query, i.e. a full
	// snapshot of the cache rather than a diff against a previous serial.
	Reset   bool
	Updates []Update
}

func (b *UpdateBatch) Add(action Action, origin RouteOrigin) {
	b.Updates = append(b.Updates, Update{Action: action, Origin: origin})
}

func (b *UpdateBatch) Len() int {
	return len(b.Updates)
}

// Timing is the cache's End of Data timing record. Protocol version 0 carries
// no timer fields, so the client substitutes the RFC 8210 section 6 defaults;
// a delivered Timing therefore always has Refresh > 0.
type Timing struct {
	Refresh time.Duration
	Retry   time.Duration
	Expire  time.Duration
}

// DefaultTiming returns the RFC 8210 section 6 recommended intervals.
func DefaultTiming() Timing {
	return Timing{
		Refresh: 3600 * time.Second,
		Retry:   600 * time.Second,
		Expire:  7200 * time.Second,
	}
}

// PayloadSink consumes the update stream of an RTR session. Start opens an
// empty batch for one data exchange; Apply receives the completed batch
// together with the cache's timing record.
//
// A done result from Apply asks the session loop to stop reading. The stream
// is otherwise unbounded, and stopping it is a deliberate control decision of
// the sink, not a failure, so it travels as its own result; error returns are
// reserved for true failures and abort the session.
type PayloadSink interface {
	Start(reset bool) *UpdateBatch
	Apply(batch *UpdateBatch, timing Timing) (done bool, err error)
}
