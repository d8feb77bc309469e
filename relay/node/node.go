// Package node is the main process which handles the lifecycle of the
// runtime services in a relay, gracefully shutting everything down
// upon close.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dlt-interop/relay/cmd/relay/flags"
	"github.com/dlt-interop/relay/config"
	"github.com/dlt-interop/relay/monitoring/prometheus"
	"github.com/dlt-interop/relay/relay/client"
	"github.com/dlt-interop/relay/relay/db/kv"
	"github.com/dlt-interop/relay/relay/rpc"
	"github.com/dlt-interop/relay/relay/subscriptions"
	"github.com/dlt-interop/relay/runtime"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// RelayNode owns every service of a running relay.
type RelayNode struct {
	cliCtx   *cli.Context
	ctx      context.Context
	cancel   context.CancelFunc
	services *runtime.ServiceRegistry
	lock     sync.RWMutex
	stop     chan struct{}
	resolver *config.Resolver
	localDB  *kv.Store
	remoteDB *kv.Store
}

// New assembles a relay node from the cli context: configuration is
// loaded, both stores are opened and every service is registered in
// dependency order.
func New(cliCtx *cli.Context) (*RelayNode, error) {
	resolver, err := config.Load(cliCtx.String(flags.ConfigFileFlag.Name))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(cliCtx.Context)
	node := &RelayNode{
		cliCtx:   cliCtx,
		ctx:      ctx,
		cancel:   cancel,
		services: runtime.NewServiceRegistry(),
		stop:     make(chan struct{}),
		resolver: resolver,
	}

	localPath, remotePath := resolver.DBPaths()
	localDB, err := kv.NewKVStore(localPath)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "could not open local store")
	}
	node.localDB = localDB
	remoteDB, err := kv.NewKVStore(remotePath)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "could not open remote store")
	}
	node.remoteDB = remoteDB
	log.WithFields(logrus.Fields{"local": localPath, "remote": remotePath}).Info("Opened relay stores")

	if cliCtx.Bool(flags.WatchConfigFlag.Name) {
		go func() {
			if err := resolver.Watch(ctx); err != nil {
				log.WithError(err).Error("Could not watch configuration file")
			}
		}()
	}

	if !cliCtx.Bool(flags.DisableMonitoringFlag.Name) {
		if err := node.registerPrometheusService(); err != nil {
			cancel()
			return nil, err
		}
	}
	if err := node.registerClientServices(); err != nil {
		cancel()
		return nil, err
	}
	if err := node.registerRPCService(); err != nil {
		cancel()
		return nil, err
	}
	return node, nil
}

// Start every service and block until an interrupt arrives.
func (n *RelayNode) Start() {
	n.lock.Lock()
	log.WithField("name", n.resolver.LocalName()).Info("Starting relay node")
	n.services.StartAll()
	stop := n.stop
	n.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic.")
			}
		}
		panic("Panic closing the relay node")
	}()

	<-stop
}

// Close handles graceful shutdown of the system.
func (n *RelayNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.services.StopAll()
	n.cancel()
	if err := n.localDB.Close(); err != nil {
		log.WithError(err).Error("Could not close local store")
	}
	if err := n.remoteDB.Close(); err != nil {
		log.WithError(err).Error("Could not close remote store")
	}
	log.Info("Stopping relay node")
	close(n.stop)
}

func (n *RelayNode) registerPrometheusService() error {
	addr := fmt.Sprintf("%s:%d",
		n.cliCtx.String(flags.MonitoringHostFlag.Name),
		n.cliCtx.Int(flags.MonitoringPortFlag.Name),
	)
	service := prometheus.NewService(addr, n.services)
	logrus.AddHook(prometheus.NewLogrusCollector())
	return n.services.RegisterService(service)
}

func (n *RelayNode) registerClientServices() error {
	drivers, err := client.NewDriverService(n.ctx, n.resolver)
	if err != nil {
		return errors.Wrap(err, "could not initialize driver service")
	}
	if err := n.services.RegisterService(drivers); err != nil {
		return err
	}
	peers, err := client.NewPeerService(n.ctx)
	if err != nil {
		return errors.Wrap(err, "could not initialize peer service")
	}
	return n.services.RegisterService(peers)
}

func (n *RelayNode) registerRPCService() error {
	var drivers *client.DriverService
	if err := n.services.FetchService(&drivers); err != nil {
		return err
	}
	var peers *client.PeerService
	if err := n.services.FetchService(&peers); err != nil {
		return err
	}
	subs := subscriptions.NewManager(n.ctx, n.localDB, drivers, peers, n.resolver)
	cert, key := n.resolver.TLSFiles()
	service := rpc.NewService(n.ctx, &rpc.Config{
		Address:       n.resolver.ListenAddress(),
		CertFile:      cert,
		KeyFile:       key,
		LocalDB:       n.localDB,
		RemoteDB:      n.remoteDB,
		Drivers:       drivers,
		Peers:         peers,
		Resolver:      n.resolver,
		Subscriptions: subs,
	})
	return n.services.RegisterService(service)
}
