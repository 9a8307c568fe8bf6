package pkg

import (
	"cmp"
	"net/netip"
	"slices"
)

// Verdict is the validation answer for one prefix, and optionally one origin
// AS, against the synchronized ROA set.
type Verdict int

const (
	// VerdictNotFound: no ROA is registered for exactly this prefix.
	VerdictNotFound Verdict = iota
	// VerdictFound: ROAs exist for the prefix and no origin AS was given.
	VerdictFound
	// VerdictValid: the given origin AS is authorized for the prefix.
	VerdictValid
	// VerdictInvalid: ROAs exist for the prefix but none name the given AS.
	VerdictInvalid
)

func (v Verdict) String() string {
	switch v {
	case VerdictNotFound:
		return "NOT FOUND"
	case VerdictFound:
		return "FOUND"
	case VerdictValid:
		return "VALID"
	case VerdictInvalid:
		return "INVALID"
	}
	return "UNKNOWN"
}

// Authorization is one distinct (origin AS, max length) pair derived from the
// ROAs matching a prefix.
type Authorization struct {
	ASN       uint32
	MaxLength uint8
}

// MatchResult is the outcome of evaluating one prefix against the ROA set.
// It is derived data, recomputed per query and never stored back.
type MatchResult struct {
	Prefix         netip.Prefix
	Authorizations []Authorization
	Verdict        Verdict
}

// ASNs returns the distinct authorized origin AS numbers in ascending order.
func (r MatchResult) ASNs() []uint32 {
	var asns []uint32
	seen := make(map[uint32]struct{}, len(r.Authorizations))
	for _, a := range r.Authorizations {
		if _, ok := seen[a.ASN]; ok {
			continue
		}
		seen[a.ASN] = struct{}{}
		asns = append(asns, a.ASN)
	}
	slices.Sort(asns)
	return asns
}

// Evaluate computes which ROAs authorize the given prefix and derives a
// verdict. A ROA matches only when its prefix equals the queried prefix
// exactly: same address family, same network address, same length. The
// question answered is "is this exact announced prefix authorized", not
// "does some shorter authorization cover it". ROAs without an explicit max
// length count with their own prefix length.
//
// Evaluate never mutates the set; the same set and query always produce the
// same result.
func Evaluate(set *RoaSet, prefix netip.Prefix, asn *uint32) MatchResult {
	result := MatchResult{Prefix: prefix}

	seen := make(map[Authorization]struct{})
	for _, origin := range set.Matching(prefix) {
		auth := Authorization{ASN: origin.ASN, MaxLength: origin.EffectiveMaxLen()}
		if _, dup := seen[auth]; dup {
			continue
		}
		seen[auth] = struct{}{}
		result.Authorizations = append(result.Authorizations, auth)
	}
	slices.SortFunc(result.Authorizations, func(a, b Authorization) int {
		if c := cmp.Compare(a.ASN, b.ASN); c != 0 {
			return c
		}
		return cmp.Compare(a.MaxLength, b.MaxLength)
	})

	switch {
	case len(result.Authorizations) == 0:
		result.Verdict = VerdictNotFound
	case asn == nil:
		result.Verdict = VerdictFound
	default:
		result.Verdict = VerdictInvalid
		for _, a := range result.Authorizations {
			if a.ASN == *asn {
				result.Verdict = VerdictValid
				break
			}
		}
	}
	return result
}
