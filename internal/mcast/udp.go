package mcast

import (
	"net"

	"github.com/hycast/hycast/internal/herrors"
)

// DialGroup resolves addr and returns a PacketConn pair for it: rconn joins
// the multicast group for receiving, wconn is used to send. Grounded on
// digitalentity-juren-cluster's commands/test.go, which builds its pubsub
// transport the same way (net.ListenMulticastUDP for the reader,
// net.DialUDP for the writer, both resolved from one configured address).
func DialGroup(addr string) (rconn *net.UDPConn, wconn *net.UDPConn, dst *net.UDPAddr, err error) {
	dst, err = net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, nil, nil, herrors.NewInvalidArgument("resolve multicast address %s: %v", addr, err)
	}
	rconn, err = net.ListenMulticastUDP("udp4", nil, dst)
	if err != nil {
		return nil, nil, nil, herrors.NewSystemError(err, "join multicast group %s", addr)
	}
	wconn, err = net.DialUDP("udp4", nil, dst)
	if err != nil {
		rconn.Close()
		return nil, nil, nil, herrors.NewSystemError(err, "open multicast writer for %s", addr)
	}
	return rconn, wconn, dst, nil
}
