// Package rpc exposes every relay service surface on a single gRPC
// listener: the client-facing Network service, the peer-facing
// DataTransfer, EventSubscribe and EventPublish services, and the SATP
// gateway surface.
package rpc

import (
	"context"
	"net"

	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/relay/client/iface"
	dbiface "github.com/dlt-interop/relay/relay/db/iface"
	"github.com/dlt-interop/relay/relay/rpc/datatransfer"
	"github.com/dlt-interop/relay/relay/rpc/eventpublish"
	"github.com/dlt-interop/relay/relay/rpc/eventsubscribe"
	"github.com/dlt-interop/relay/relay/rpc/network"
	"github.com/dlt-interop/relay/relay/satp"
	"github.com/dlt-interop/relay/relay/subscriptions"
	"github.com/dlt-interop/relay/relay/wire"
	middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

var log = logrus.WithField("prefix", "rpc")

// Config options for the relay gRPC server.
type Config struct {
	Address       string
	CertFile      string
	KeyFile       string
	LocalDB       dbiface.Store
	RemoteDB      dbiface.Store
	Drivers       iface.DriverCaller
	Peers         iface.PeerCaller
	Resolver      *config.Resolver
	Subscriptions *subscriptions.Manager
	Validator     satp.Validator
}

// Service owns the listener and the registered relay services.
type Service struct {
	cfg             *Config
	ctx             context.Context
	cancel          context.CancelFunc
	listener        net.Listener
	grpcServer      *grpc.Server
	credentialError error
	startError      error
}

// NewService instantiates the relay RPC service.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start opens the listener and begins serving all relay services.
func (s *Service) Start() {
	lis, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		log.WithError(err).Errorf("Could not listen on %s", s.cfg.Address)
		s.startError = err
		return
	}
	s.listener = lis

	opts := []grpc.ServerOption{
		grpc.StreamInterceptor(middleware.ChainStreamServer(
			recovery.StreamServerInterceptor(
				recovery.WithRecoveryHandlerContext(recoveryHandler),
			),
			grpc_prometheus.StreamServerInterceptor,
		)),
		grpc.UnaryInterceptor(middleware.ChainUnaryServer(
			recovery.UnaryServerInterceptor(
				recovery.WithRecoveryHandlerContext(recoveryHandler),
			),
			grpc_prometheus.UnaryServerInterceptor,
		)),
	}
	grpc_prometheus.EnableHandlingTimeHistogram()

	if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(s.cfg.CertFile, s.cfg.KeyFile)
		if err != nil {
			log.WithError(err).Error("Could not load TLS keys")
			s.credentialError = err
		} else {
			opts = append(opts, grpc.Creds(creds))
			log.WithFields(logrus.Fields{
				"crt-path": s.cfg.CertFile,
				"key-path": s.cfg.KeyFile,
			}).Info("Loaded TLS certificates")
		}
	} else {
		log.Warn("Serving gRPC without TLS, configure a certificate and key for production use")
	}
	s.grpcServer = grpc.NewServer(opts...)

	wire.RegisterNetworkServer(s.grpcServer, network.NewServer(s.ctx, &network.Config{
		LocalDB:       s.cfg.LocalDB,
		RemoteDB:      s.cfg.RemoteDB,
		Peers:         s.cfg.Peers,
		Resolver:      s.cfg.Resolver,
		Subscriptions: s.cfg.Subscriptions,
	}))
	wire.RegisterDataTransferServer(s.grpcServer, datatransfer.NewServer(s.ctx, &datatransfer.Config{
		LocalDB:  s.cfg.LocalDB,
		RemoteDB: s.cfg.RemoteDB,
		Drivers:  s.cfg.Drivers,
		Peers:    s.cfg.Peers,
		Resolver: s.cfg.Resolver,
	}))
	wire.RegisterEventSubscribeServer(s.grpcServer, eventsubscribe.NewServer(s.ctx, &eventsubscribe.Config{
		RemoteDB:      s.cfg.RemoteDB,
		Drivers:       s.cfg.Drivers,
		Peers:         s.cfg.Peers,
		Resolver:      s.cfg.Resolver,
		Subscriptions: s.cfg.Subscriptions,
	}))
	wire.RegisterEventPublishServer(s.grpcServer, eventpublish.NewServer(s.ctx, &eventpublish.Config{
		RemoteDB:      s.cfg.RemoteDB,
		Peers:         s.cfg.Peers,
		Resolver:      s.cfg.Resolver,
		Subscriptions: s.cfg.Subscriptions,
	}))
	wire.RegisterSATPServer(s.grpcServer, satp.NewService(s.ctx, &satp.Config{
		LocalDB:   s.cfg.LocalDB,
		Drivers:   s.cfg.Drivers,
		Peers:     s.cfg.Peers,
		Resolver:  s.cfg.Resolver,
		Validator: s.cfg.Validator,
	}))
	reflection.Register(s.grpcServer)
	grpc_prometheus.Register(s.grpcServer)

	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil && err != grpc.ErrServerStopped {
			log.WithError(err).Error("Could not serve gRPC")
		}
	}()
	log.WithField("address", s.cfg.Address).Info("gRPC server listening")
}

// Stop drains in-flight calls and closes the listener.
func (s *Service) Stop() error {
	s.cancel()
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
		log.Debug("Initiated graceful stop of gRPC server")
	}
	return nil
}

// Status returns the credential or listener error if either occurred.
func (s *Service) Status() error {
	if s.startError != nil {
		return s.startError
	}
	return s.credentialError
}

func recoveryHandler(ctx context.Context, p interface{}) error {
	log.WithField("panic", p).Error("Recovered from panic in gRPC handler")
	return status.Errorf(codes.Internal, "internal error")
}
