// Package config loads the relay's process-wide configuration once at
// startup and serves lookups from behind a single-writer/many-reader
// lock. Services receive the resolver as an explicit dependency.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dlt-interop/relay/relay/types"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var log = logrus.WithField("prefix", "config")

// Location describes one reachable endpoint: a driver or a peer relay.
type Location struct {
	Hostname      string `yaml:"hostname"`
	Port          string `yaml:"port"`
	TLS           bool   `yaml:"tls"`
	TLSCACertPath string `yaml:"tlsca_cert_path"`
}

// Address renders host:port for dialing.
func (l Location) Address() string {
	return fmt.Sprintf("%s:%s", l.Hostname, l.Port)
}

// Network describes one permissioned ledger this relay fronts.
type Network struct {
	Type   string `yaml:"type"`
	Driver string `yaml:"driver"`
}

// Config is the on-disk shape of the relay configuration file.
type Config struct {
	Name                     string              `yaml:"name"`
	Host                     string              `yaml:"host"`
	Port                     string              `yaml:"port"`
	DBPath                   string              `yaml:"db_path"`
	RemoteDBPath             string              `yaml:"remote_db_path"`
	CertPath                 string              `yaml:"cert_path"`
	KeyPath                  string              `yaml:"key_path"`
	DriverErrorConstantsPath string              `yaml:"driver_error_constants_path"`
	Networks                 map[string]Network  `yaml:"networks"`
	Drivers                  map[string]Location `yaml:"drivers"`
	Relays                   map[string]Location `yaml:"relays"`
}

// Resolver is the read-only facade handed to services. Reload swaps
// the config pointer under the write lock; readers copy fields and
// never hold the lock across a suspension.
type Resolver struct {
	mu             sync.RWMutex
	cfg            *Config
	errorConstants map[string]string
	path           string
}

// Load reads the yaml file at path and the driver error-constants
// catalog it references.
func Load(path string) (*Resolver, error) {
	r := &Resolver{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the configuration file. On failure the previous
// configuration stays in effect.
func (r *Resolver) Reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return errors.Wrap(err, "could not read config file")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return errors.Wrap(err, "could not parse config file")
	}
	if cfg.Name == "" {
		return errors.Wrap(types.ErrMalformed, "config: missing relay name")
	}
	consts := map[string]string{}
	if cfg.DriverErrorConstantsPath != "" {
		craw, err := os.ReadFile(cfg.DriverErrorConstantsPath)
		if err != nil {
			return errors.Wrap(err, "could not read driver error constants")
		}
		if err := json.Unmarshal(craw, &consts); err != nil {
			return errors.Wrap(err, "could not parse driver error constants")
		}
	}
	r.mu.Lock()
	r.cfg = cfg
	r.errorConstants = consts
	r.mu.Unlock()
	return nil
}

// Watch reloads the configuration whenever the file changes, until the
// context is canceled. Reload failures are logged and skipped.
func (r *Resolver) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(r.path); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.Reload(); err != nil {
					log.WithError(err).Error("Could not reload configuration")
					continue
				}
				log.Info("Configuration reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Error("Config watcher error")
			}
		}
	}()
	return nil
}

// LocalName returns the relay's own name, stamped on outbound queries
// as requesting_relay.
func (r *Resolver) LocalName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.Name
}

// ListenAddress returns host:port for the relay's own gRPC listener.
func (r *Resolver) ListenAddress() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("%s:%s", r.cfg.Host, r.cfg.Port)
}

// TLSFiles returns the relay's own server certificate and key paths.
func (r *Resolver) TLSFiles() (cert, key string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.CertPath, r.cfg.KeyPath
}

// DBPaths returns the local and remote store directories.
func (r *Resolver) DBPaths() (local, remote string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.DBPath, r.cfg.RemoteDBPath
}

// GetDriver resolves the driver endpoint for a network id.
func (r *Resolver) GetDriver(networkID string) (Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	net, ok := r.cfg.Networks[networkID]
	if !ok {
		return Location{}, errors.Wrapf(types.ErrNotFound, "unknown network %s", networkID)
	}
	loc, ok := r.cfg.Drivers[net.Driver]
	if !ok {
		return Location{}, errors.Wrapf(types.ErrNotFound, "unknown driver %s for network %s", net.Driver, networkID)
	}
	return loc, nil
}

// GetDriverByID resolves a driver endpoint directly by driver name,
// for publication specs that carry a driver id.
func (r *Resolver) GetDriverByID(driverID string) (Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.cfg.Drivers[driverID]
	if !ok {
		return Location{}, errors.Wrapf(types.ErrNotFound, "unknown driver %s", driverID)
	}
	return loc, nil
}

// GetPeerRelay resolves a peer relay endpoint by name.
func (r *Resolver) GetPeerRelay(name string) (Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.cfg.Relays[name]
	if !ok {
		return Location{}, errors.Wrapf(types.ErrNotFound, "unknown relay %s", name)
	}
	return loc, nil
}

// GetPeerRelayByAddress finds the TLS trust settings for a relay known
// only by host:port, as parsed from a client-supplied address. Unknown
// endpoints dial plaintext.
func (r *Resolver) GetPeerRelayByAddress(hostname, port string) Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, loc := range r.cfg.Relays {
		if loc.Hostname == hostname && loc.Port == port {
			return loc
		}
	}
	return Location{Hostname: hostname, Port: port}
}

// DriverErrorConstants exposes the driver error-message catalog used to
// classify driver acks (notably the "subscription exists" pattern).
func (r *Resolver) DriverErrorConstants() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.errorConstants))
	for k, v := range r.errorConstants {
		out[k] = v
	}
	return out
}
