package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/barvelocity/internal/monitoring"
)

const maxMsgSize = 16 * 1024 * 1024

// NewGRPCServer builds a grpc.Server with SessionService registered and
// per-call logging.
func NewGRPCServer(store SessionStore) *grpc.Server {
	gs := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
		grpc.ChainUnaryInterceptor(logUnary),
	)
	RegisterService(gs, NewServer(store))
	return gs
}

// Serve runs gs on lis until ctx is done, then stops it gracefully.
func Serve(ctx context.Context, gs *grpc.Server, lis net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("[rpc] listening on %s", lis.Addr())
		errc <- gs.Serve(lis)
	}()
	select {
	case <-ctx.Done():
		gs.GracefulStop()
		<-errc
		return nil
	case err := <-errc:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	monitoring.Logf("[rpc] %s code=%s in %s", info.FullMethod, status.Code(err), time.Since(start))
	return resp, err
}
