package pkg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/osrg/gobgp/v3/pkg/packet/rtr"
	log "github.com/sirupsen/logrus"
)

// RTRClient drives one RPKI-to-Router session over an established connection.
// PDU framing and parsing come from the gobgp rtr codec; RTRClient implements
// the session exchange on top of it and hands every completed data exchange
// to the configured PayloadSink.
//
// The caller keeps ownership of the connection and closes it after Run
// returns.
type RTRClient struct {
	conn net.Conn
	sink PayloadSink

	sessionID  uint16
	serial     uint32
	haveSerial bool
	resetting  bool
}

func NewRTRClient(conn net.Conn, sink PayloadSink) *RTRClient {
	return &RTRClient{
		conn:      conn,
		sink:      sink,
		resetting: true,
	}
}

// Run performs the RTR exchange until the sink stops it, the server ends the
// session, the deadline expires or the protocol fails. The context deadline,
// if set, is pushed onto the connection, so an expiry surfaces as a read or
// write timeout rather than leaving the loop blocked; callers classify it
// with errors.Is(err, os.ErrDeadlineExceeded).
//
// The stopped result is true when the sink asked to stop the session; it is
// never paired with an error. A server that closes the session cleanly
// yields (false, nil).
func (c *RTRClient) Run(ctx context.Context) (stopped bool, err error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return false, fmt.Errorf("arm session deadline: %w", err)
		}
	}

	// A Reset Query asks the cache for its complete data set, which is all a
	// one-shot validator needs.
	if err := c.send(rtr.NewRTRResetQuery()); err != nil {
		return false, err
	}

	scanner := bufio.NewScanner(c.conn)
	scanner.Split(rtr.SplitRTR)

	var batch *UpdateBatch
	for scanner.Scan() {
		msg, err := rtr.ParseRTR(scanner.Bytes())
		if err != nil {
			return false, fmt.Errorf("parse rtr pdu: %w", err)
		}

		switch pdu := msg.(type) {
		case *rtr.RTRCacheResponse:
			if batch != nil {
				return false, errors.New("rtr: cache response inside an open data exchange")
			}
			// The session ID may only change across a cache reset.
			if c.haveSerial && !c.resetting && pdu.SessionID != c.sessionID {
				return false, fmt.Errorf("rtr: session id changed from %d to %d", c.sessionID, pdu.SessionID)
			}
			c.sessionID = pdu.SessionID
			batch = c.sink.Start(c.resetting)
			c.resetting = false

		case *rtr.RTRIPPrefix:
			if batch == nil {
				return false, errors.New("rtr: prefix pdu outside a data exchange")
			}
			origin, err := originFromPDU(pdu)
			if err != nil {
				return false, err
			}
			action := ActionWithdraw
			if pdu.Flags&rtr.ANNOUNCEMENT != 0 {
				action = ActionAnnounce
			}
			batch.Add(action, origin)

		case *rtr.RTREndOfData:
			if batch == nil {
				return false, errors.New("rtr: end of data outside a data exchange")
			}
			c.sessionID = pdu.SessionID
			c.serial = pdu.SerialNumber
			c.haveSerial = true
			delivered := batch
			batch = nil
			log.WithFields(log.Fields{
				"serial":  c.serial,
				"updates": delivered.Len(),
			}).Debug("rtr data exchange complete")
			// Version 0 End of Data carries no timer fields; hand the sink
			// the protocol defaults instead.
			done, err := c.sink.Apply(delivered, DefaultTiming())
			if err != nil {
				return false, fmt.Errorf("apply rtr updates: %w", err)
			}
			if done {
				return true, nil
			}

		case *rtr.RTRSerialNotify:
			// Before the first End of Data there is no serial to ask about,
			// and the initial reset exchange is already in flight.
			if c.haveSerial && batch == nil {
				if err := c.send(rtr.NewRTRSerialQuery(c.sessionID, c.serial)); err != nil {
					return false, err
				}
			}

		case *rtr.RTRCacheReset:
			if batch != nil {
				return false, errors.New("rtr: cache reset inside an open data exchange")
			}
			// The cache cannot serve a diff for our serial; start over with
			// a full reload.
			c.resetting = true
			if err := c.send(rtr.NewRTRResetQuery()); err != nil {
				return false, err
			}

		case *rtr.RTRErrorReport:
			return false, fmt.Errorf("rtr: error report from cache: %s (%q)", errorCodeName(pdu.ErrorCode), pdu.Text)

		default:
			return false, fmt.Errorf("rtr: unexpected pdu %T", msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read rtr stream: %w", err)
	}
	// The server closed the session cleanly.
	return false, nil
}

func (c *RTRClient) send(msg rtr.RTRMessage) error {
	data, err := msg.Serialize()
	if err != nil {
		return fmt.Errorf("serialize rtr pdu: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("send rtr pdu: %w", err)
	}
	return nil
}

// originFromPDU converts a decoded prefix PDU into a RouteOrigin. The codec
// hands IPv4 addresses over as 4-byte and IPv6 as 16-byte slices; both are
// normalized into netip form and masked to their stated length.
func originFromPDU(pdu *rtr.RTRIPPrefix) (RouteOrigin, error) {
	addr, ok := netip.AddrFromSlice(pdu.Prefix)
	if !ok {
		return RouteOrigin{}, fmt.Errorf("rtr: prefix pdu with %d-byte address", len(pdu.Prefix))
	}
	addr = addr.Unmap()
	pfx := netip.PrefixFrom(addr, int(pdu.PrefixLen))
	if !pfx.IsValid() {
		return RouteOrigin{}, fmt.Errorf("rtr: prefix pdu with invalid length /%d for %s", pdu.PrefixLen, addr)
	}
	return RouteOrigin{
		Prefix: pfx.Masked(),
		MaxLen: pdu.MaxLen,
		ASN:    pdu.AS,
	}, nil
}

func errorCodeName(code uint16) string {
	switch code {
	case rtr.CORRUPT_DATA:
		return "corrupt data"
	case rtr.INTERNAL_ERROR:
		return "internal error"
	case rtr.NO_DATA_AVAILABLE:
		return "no data available"
	case rtr.INVALID_REQUEST:
		return "invalid request"
	case rtr.UNSUPPORTED_PROTOCOL_VERSION:
		return "unsupported protocol version"
	case rtr.UNSUPPORTED_PDU_TYPE:
		return "unsupported pdu type"
	case rtr.WITHDRAWAL_OF_UNKNOWN_RECORD:
		return "withdrawal of unknown record"
	case rtr.DUPLICATE_ANNOUNCEMENT_RECORD:
		return "duplicate announcement record"
	}
	return fmt.Sprintf("error code %d", code)
}
