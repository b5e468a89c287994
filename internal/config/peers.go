package config

import (
	"fmt"
	"net"

	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/peer"
)

// StaticSource is a peer.Source backed by a fixed, pre-resolved list of
// addresses, e.g. the peer_source config surface spec.md §6 names.
type StaticSource struct {
	addrs []net.Addr
	pos   int
}

// NewStaticSource resolves each host/port pair once at construction time;
// DNS lookup of hostnames beyond what net.ResolveTCPAddr performs is out
// of scope for this module.
func NewStaticSource(peers []PeerAddr) (*StaticSource, error) {
	addrs := make([]net.Addr, 0, len(peers))
	for _, p := range peers {
		addr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", p.Host, p.Port))
		if err != nil {
			return nil, herrors.NewInvalidArgument("resolve peer address %s:%d: %v", p.Host, p.Port, err)
		}
		addrs = append(addrs, addr)
	}
	return &StaticSource{addrs: addrs}, nil
}

// Next returns the next address in the list, cycling back to the start
// once exhausted, since a static peer list is meant to be retried. It
// reports false only when the list is empty.
func (s *StaticSource) Next() (net.Addr, bool) {
	if len(s.addrs) == 0 {
		return nil, false
	}
	addr := s.addrs[s.pos]
	s.pos = (s.pos + 1) % len(s.addrs)
	return addr, true
}

var _ peer.Source = (*StaticSource)(nil)
