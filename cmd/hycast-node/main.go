// Command hycast-node wires together the product/chunk data model, the
// product store, multicast ingest, and peer sessions into one running
// instance: it joins a multicast group, accepts and dials peer connections,
// and serves/patches chunks over them. It does not parse a peer list or
// flags itself, per spec.md §1's non-goals — address and peer-list
// ingestion is handled by internal/config and handed in as a pre-resolved
// peer.Source.
//
// Grounded on pyropy-dfs's cmd/chunkserver/main.go: a func main that defers
// to run() error, logs with zap's Infow/Errorw, and shuts down on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hycast/hycast/internal/config"
	"github.com/hycast/hycast/internal/exchange"
	"github.com/hycast/hycast/internal/logging"
	"github.com/hycast/hycast/internal/mcast"
	"github.com/hycast/hycast/internal/mstream"
	"github.com/hycast/hycast/internal/peer"
	"github.com/hycast/hycast/internal/product"
	"github.com/hycast/hycast/internal/store"
)

func main() {
	log, err := logging.New("hycast-node")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatalw("startup", "error", err)
	}
}

func run(log *logging.Logger) error {
	cfg, err := config.Load("hycast")
	if err != nil {
		log.Errorw("startup", "error", "config error", "detail", err)
		return err
	}
	if cfg.CanonicalChunkSize != 0 {
		if err := product.SetCanonicalChunkSize(cfg.CanonicalChunkSize); err != nil {
			log.Errorw("startup", "error", "bad canonical chunk size", "detail", err)
			return err
		}
	}

	st, err := store.NewStore(cfg.Residence(), cfg.Store.PeerStorePath)
	if err != nil {
		log.Errorw("startup", "error", "store init failed", "detail", err)
		return err
	}
	st.SetLogger(log)
	defer st.Close()

	ex := exchange.New(st)
	ex.SetLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := startMulticast(ctx, cfg, st, log); err != nil {
		log.Errorw("startup", "error", "multicast init failed", "detail", err)
		return err
	}

	ln, err := mstream.Listen(ctx, ":0")
	if err != nil {
		log.Errorw("startup", "error", "listen failed", "detail", err)
		return err
	}
	defer ln.Close()
	log.Infow("startup", "status", "peer listener started", "address", ln.Addr())

	go acceptLoop(ctx, ln, ex, log)

	peers, err := cfg.PeerAddrs()
	if err != nil {
		log.Errorw("startup", "error", "peer list parse failed", "detail", err)
		return err
	}
	if len(peers) > 0 {
		src, err := config.NewStaticSource(peers)
		if err != nil {
			log.Errorw("startup", "error", "peer source init failed", "detail", err)
			return err
		}
		go dialLoop(ctx, src, ex, log)
	}

	go ex.RequestMissing(ctx, time.Second)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	log.Infow("shutdown", "status", "hycast-node stopping")
	return nil
}

// startMulticast joins cfg's multicast group and runs a Receiver in the
// background that feeds incoming datagrams into st via mcast.StoreRcvr.
// It also constructs a Sender on the group but does not keep or use it.
func startMulticast(ctx context.Context, cfg *config.Config, st *store.Store, log *logging.Logger) error {
	rconn, wconn, dst, err := mcast.DialGroup(cfg.Mcast.Addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		rconn.Close()
		wconn.Close()
	}()

	rcvr := mcast.StoreRcvr{Store: st}
	receiver := mcast.NewReceiver(rconn, rcvr)
	receiver.SetLogger(log)
	go func() {
		if err := receiver.Run(); err != nil {
			log.Errorw("mcast", "event", "receiver-stopped", "error", err)
		}
	}()

	_ = mcast.NewSender(wconn, dst)
	return nil
}

// acceptLoop accepts incoming peer connections until an Accept fails
// (including once the listener is closed), handing each to runSession,
// which handshakes and registers it with ex before running its receive loop.
func acceptLoop(ctx context.Context, ln *mstream.Listener, ex *exchange.Exchange, log *logging.Logger) {
	for {
		sock, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Errorw("peer", "event", "accept-failed", "error", err)
				return
			}
		}
		go runSession(ctx, sock, ex, log)
	}
}

// dialLoop repeatedly dials the next address src yields, spacing attempts
// out so a persistently unreachable peer doesn't spin the loop.
func dialLoop(ctx context.Context, src peer.Source, ex *exchange.Exchange, log *logging.Logger) {
	for {
		addr, ok := src.Next()
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		sock, err := mstream.Dial(ctx, addr.String())
		if err != nil {
			log.Errorw("peer", "event", "dial-failed", "address", addr.String(), "error", err)
			time.Sleep(time.Second)
			continue
		}
		go runSession(ctx, sock, ex, log)
	}
}

// runSession brings one accepted or dialed socket up through the
// handshake and runs its receive loop until the peer disconnects, the
// session fails, or ctx is canceled.
func runSession(ctx context.Context, sock peer.Socket, ex *exchange.Exchange, log *logging.Logger) {
	s := peer.NewSession(ctx, sock, ex)
	s.SetLogger(log)
	if err := s.Handshake(); err != nil {
		log.Errorw("peer", "event", "handshake-failed", "error", err)
		_ = sock.Close()
		return
	}
	ex.Register(s)
	defer ex.Unregister(s)
	if err := s.Run(); err != nil {
		log.Errorw("peer", "event", "session-failed", "error", err)
	}
	_ = s.Close()
}
