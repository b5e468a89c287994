// Package config loads the per-instance configuration surface spec.md §6
// enumerates: multicast group parameters, store residence and
// persistence, and the peer source list. Address/hostname parsing and
// peer-list ingestion beyond bare host/port pairs are out of scope; a
// StaticSource (a peer.Source) built from the parsed peer list is the
// collaborator that consumes this.
//
// Grounded on the teacher's core/chunkserver/config.go (envconfig-backed
// Config struct with nested sections), generalized from a single-server
// config to hycast's multicast/store/peer sections.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/hycast/hycast/internal/herrors"
)

// PeerAddr is one entry of the peer_source list: an already-resolved
// host/port pair an external component produced, not a hostname this
// module resolves itself.
type PeerAddr struct {
	Host string `envconfig:"HOST"`
	Port int    `envconfig:"PORT"`
}

// Config is the full per-instance configuration surface.
type Config struct {
	Mcast struct {
		Addr       string `envconfig:"MCAST_ADDR" required:"true"`
		SourceAddr string `envconfig:"MCAST_SOURCE_ADDR"`
		HopLimit   uint8  `envconfig:"MCAST_HOP_LIMIT" default:"1"`
		Loopback   bool   `envconfig:"MCAST_LOOPBACK" default:"true"`
	} `ignored:"true"`
	Store struct {
		ResidenceSeconds float64 `envconfig:"RESIDENCE_SECONDS" default:"3600"`
		PeerStorePath    string  `envconfig:"PEER_STORE_PATH"`
	} `ignored:"true"`
	CanonicalChunkSize uint32 `envconfig:"CANONICAL_CHUNK_SIZE" default:"32760"`

	// Peers is a comma-separated host:port list, e.g. "10.0.0.2:7000,10.0.0.3:7000".
	// envconfig has no generic struct-slice decoding, so the list is parsed
	// by PeerAddrs() rather than tagged field-by-field.
	Peers string `envconfig:"PEERS"`
}

// PeerAddrs parses the Peers field into PeerAddr entries.
func (c *Config) PeerAddrs() ([]PeerAddr, error) {
	var out []PeerAddr
	for _, entry := range strings.Split(c.Peers, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		host, portStr, err := splitHostPort(entry)
		if err != nil {
			return nil, herrors.NewInvalidArgument("parse peer entry %q: %v", entry, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, herrors.NewInvalidArgument("parse peer port in %q: %v", entry, err)
		}
		out = append(out, PeerAddr{Host: host, Port: port})
	}
	return out, nil
}

func splitHostPort(entry string) (string, string, error) {
	i := strings.LastIndex(entry, ":")
	if i < 0 {
		return "", "", herrors.NewInvalidArgument("missing port in %q", entry)
	}
	return entry[:i], entry[i+1:], nil
}

// Load reads configuration from environment variables under the given
// prefix (e.g. "HYCAST" reads HYCAST_MCAST_ADDR, etc.).
func Load(prefix string) (*Config, error) {
	var cfg Config
	// Each section is processed under the bare prefix so its variables are
	// PREFIX_<tag>, not PREFIX_<SECTION>_<tag> as envconfig names nested
	// struct fields.
	for _, section := range []any{&cfg.Mcast, &cfg.Store, &cfg} {
		if err := envconfig.Process(prefix, section); err != nil {
			return nil, herrors.NewInvalidArgument("load configuration: %v", err)
		}
	}
	if cfg.Store.ResidenceSeconds < 0 {
		return nil, herrors.NewInvalidArgument("residence_seconds must be >= 0, got %f", cfg.Store.ResidenceSeconds)
	}
	return &cfg, nil
}

// Residence returns the configured residence as a time.Duration, the unit
// internal/store's NewStore expects.
func (c *Config) Residence() time.Duration {
	return time.Duration(c.Store.ResidenceSeconds * float64(time.Second))
}
