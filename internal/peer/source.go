package peer

import "net"

// Source yields already-resolved peer addresses for a node to dial or
// accept from. Address/hostname parsing, DNS lookup, and configuration
// ingestion of peer lists are out of scope for this module (spec.md §1);
// Source is the collaborator interface an external component satisfies to
// supply that resolved address stream.
type Source interface {
	// Next blocks until another peer address is available, or returns
	// false once the source is exhausted.
	Next() (net.Addr, bool)
}
