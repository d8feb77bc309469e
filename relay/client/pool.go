// Package client implements the relay's outbound gRPC clients: one
// service for the local drivers, one for peer relays. Connections are
// pooled per endpoint and shared across calls.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/dlt-interop/relay/config"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

var log = logrus.WithField("prefix", "client")

const (
	// DefaultCallTimeout bounds every outbound unary call.
	DefaultCallTimeout = 30 * time.Second
	// DefaultDialTimeout bounds connection establishment, including
	// the TLS handshake.
	DefaultDialTimeout = 5 * time.Second

	poolSize = 64
)

// pool caches one shared *grpc.ClientConn per endpoint. Evicted or
// replaced connections are closed; grpc conns are safe for concurrent
// use so a single conn per endpoint suffices.
type pool struct {
	mu    sync.Mutex
	conns *lru.Cache
	dial  time.Duration
}

func newPool(dialTimeout time.Duration) (*pool, error) {
	conns, err := lru.NewWithEvict(poolSize, func(_ interface{}, v interface{}) {
		if err := v.(*grpc.ClientConn).Close(); err != nil {
			log.WithError(err).Debug("Could not close evicted connection")
		}
	})
	if err != nil {
		return nil, err
	}
	return &pool{conns: conns, dial: dialTimeout}, nil
}

func (p *pool) get(ctx context.Context, loc config.Location) (*grpc.ClientConn, error) {
	key := loc.Address() + "|" + loc.TLSCACertPath
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.conns.Get(key); ok {
		return v.(*grpc.ClientConn), nil
	}
	var creds grpc.DialOption
	if loc.TLS {
		tc, err := credentials.NewClientTLSFromFile(loc.TLSCACertPath, "")
		if err != nil {
			return nil, errors.Wrapf(err, "could not load trust cert for %s", loc.Address())
		}
		creds = grpc.WithTransportCredentials(tc)
	} else {
		creds = grpc.WithTransportCredentials(insecure.NewCredentials())
	}
	dialCtx, cancel := context.WithTimeout(ctx, p.dial)
	defer cancel()
	// WithBlock makes the timeout cover connection establishment; a
	// lazy dial would defer endpoint failures to the first call.
	conn, err := grpc.DialContext(dialCtx, loc.Address(), creds, grpc.WithBlock())
	if err != nil {
		return nil, errors.Wrapf(err, "could not dial %s", loc.Address())
	}
	p.conns.Add(key, conn)
	return conn, nil
}

func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns.Purge()
}
