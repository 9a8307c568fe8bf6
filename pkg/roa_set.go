package pkg

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// RoaSet is the collection of route origins accumulated over one RTR session.
// Entries are keyed by prefix in a bart routing table, which keeps the two
// address families strictly apart. The set only grows: a one-shot validator
// performs a single full download and never applies withdrawals, so there is
// no delete path.
//
// The zero value is ready to use. A RoaSet is not safe for concurrent use;
// the collector owns it exclusively until the session has ended.
type RoaSet struct {
	table bart.Table[[]RouteOrigin]
	size4 int
	size6 int
}

// Add records one announced route origin. Duplicates are kept; the match
// engine deduplicates when it derives authorizations.
func (s *RoaSet) Add(origin RouteOrigin) {
	s.table.Update(origin.Prefix, func(entries []RouteOrigin, _ bool) []RouteOrigin {
		return append(entries, origin)
	})
	if origin.Prefix.Addr().Is4() {
		s.size4++
	} else {
		s.size6++
	}
}

// Matching returns the route origins registered for exactly the given prefix:
// same address family, same network address, same length. No covering-prefix
// search is performed.
func (s *RoaSet) Matching(prefix netip.Prefix) []RouteOrigin {
	entries, _ := s.table.Get(prefix)
	return entries
}

// Len returns the total number of route origins received.
func (s *RoaSet) Len() int {
	return s.size4 + s.size6
}

// Len4 and Len6 report the per-family counts.
func (s *RoaSet) Len4() int { return s.size4 }

func (s *RoaSet) Len6() int { return s.size6 }
