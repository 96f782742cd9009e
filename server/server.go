package server

import (
	"context"
	"errors"
	"net"

	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/dnsmsg"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/sync/errgroup"
)

// Server type
type Server struct {
	network string
	addr    string
	workers int

	dispatcher *Dispatcher
}

type datagram struct {
	data []byte
	peer net.Addr
}

// New return new server running the handlers built by middleware.Setup.
func New(cfg *config.Config) *Server {
	return &Server{
		network:    cfg.Network(),
		addr:       cfg.BindAddr(),
		workers:    cfg.Workers,
		dispatcher: NewDispatcher(middleware.Handlers()),
	}
}

// ListenAndServe binds the UDP socket and serves it until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket(s.network, s.addr)
	if err != nil {
		zlog.Error("DNS listener failed", "net", s.network, "addr", s.addr, "error", err.Error())
		return err
	}

	zlog.Info("DNS server listening...", "net", s.network, "addr", conn.LocalAddr().String(), "workers", s.workers)

	return s.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx is done or conn is closed.
// With more than one worker, datagrams are handled concurrently.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if s.workers <= 1 {
		return s.receive(ctx, conn, func(buf []byte, peer net.Addr) {
			s.dispatcher.ServeDatagram(ctx, conn, buf, peer)
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan datagram, s.workers)

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for dg := range queue {
				s.dispatcher.ServeDatagram(gctx, conn, dg.data, dg.peer)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(queue)

		return s.receive(gctx, conn, func(buf []byte, peer net.Addr) {
			data := make([]byte, len(buf))
			copy(data, buf)

			select {
			case queue <- datagram{data: data, peer: peer}:
			case <-gctx.Done():
			}
		})
	})

	return g.Wait()
}

func (s *Server) receive(ctx context.Context, conn net.PacketConn, handle func([]byte, net.Addr)) error {
	buf := make([]byte, dnsmsg.MaxMsgSize)

	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			zlog.Warn("DNS read failed", "net", s.network, "error", err.Error())
			continue
		}

		handle(buf[:n], peer)
	}
}

// Dispatcher returns the dispatcher datagrams are handed to.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }
