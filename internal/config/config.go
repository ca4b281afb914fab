package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/tibiago/internal/constants"
	"github.com/udisondev/tibiago/internal/crypto"
	"github.com/udisondev/tibiago/internal/session"
)

// Analyzer holds all configuration for the capture analyzer.
type Analyzer struct {
	// TCP ports carrying Tibia traffic
	Ports []uint16 `yaml:"ports"`

	// Dissection
	Dissector DissectorConfig `yaml:"dissector"`

	// Key material
	RSAKeys  []RSAKeyEntry  `yaml:"rsa_keys"`
	XTEAKeys []XTEAKeyEntry `yaml:"xtea_keys"`
}

// DissectorConfig holds the dissector switches.
type DissectorConfig struct {
	TryOTServKey        bool `yaml:"try_otserv_key"`
	ShowCharName        bool `yaml:"show_char_name"`
	ShowAccInfo         bool `yaml:"show_acc_info"`
	ShowXTEAKey         bool `yaml:"show_xtea_key"`
	DissectGameCommands bool `yaml:"dissect_game_commands"`
}

// RSAKeyEntry binds a private key file to a server endpoint.
type RSAKeyEntry struct {
	IP       string `yaml:"ip"`
	Port     uint16 `yaml:"port"`
	KeyFile  string `yaml:"keyfile"`
	Password string `yaml:"password"` // PKCS#12 only
}

// XTEAKeyEntry is a symmetric key known out of band, bound to the
// conversation of the given frame.
type XTEAKeyEntry struct {
	Frame uint32 `yaml:"frame"`
	Key   string `yaml:"key"` // 32 hex digits, punctuation ignored
}

// DefaultAnalyzer returns Analyzer config with sensible defaults.
func DefaultAnalyzer() Analyzer {
	return Analyzer{
		Ports: append([]uint16(nil), constants.DefaultPorts...),
		Dissector: DissectorConfig{
			TryOTServKey:        true,
			ShowCharName:        true,
			ShowAccInfo:         true,
			ShowXTEAKey:         false,
			DissectGameCommands: true,
		},
	}
}

// LoadAnalyzer loads analyzer config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadAnalyzer(path string) (Analyzer, error) {
	cfg := DefaultAnalyzer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// KeyStore loads every configured key. Entries that fail to load are
// logged and skipped so one bad key does not disable the others.
func (a Analyzer) KeyStore() *session.StaticKeyStore {
	ks := session.NewStaticKeyStore()

	for _, e := range a.RSAKeys {
		addr, err := e.AddrPort()
		if err != nil {
			slog.Warn("skipping RSA key", "keyfile", e.KeyFile, "err", err)
			continue
		}
		key, err := crypto.LoadPrivateKey(e.KeyFile, e.Password)
		if err != nil {
			slog.Warn("skipping RSA key", "server", addr, "keyfile", e.KeyFile, "err", err)
			continue
		}
		if key.N.BitLen() > constants.RSABlockSize*8 {
			slog.Warn("skipping RSA key", "server", addr, "keyfile", e.KeyFile,
				"err", fmt.Sprintf("modulus is %d bits, at most %d supported", key.N.BitLen(), constants.RSABlockSize*8))
			continue
		}
		ks.AddPrivateKey(addr, key)
		slog.Debug("RSA key loaded", "server", addr, "keyfile", e.KeyFile)
	}

	for _, e := range a.XTEAKeys {
		key, err := crypto.ParseXTEAKey(e.Key)
		if err != nil {
			slog.Warn("skipping XTEA key", "frame", e.Frame, "err", err)
			continue
		}
		ks.AddInjectedKey(e.Frame, key)
	}

	return ks
}

// AddrPort returns the server endpoint of the entry.
func (e RSAKeyEntry) AddrPort() (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(e.IP)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("parsing ip %q: %w", e.IP, err)
	}
	if e.Port == 0 {
		return netip.AddrPort{}, fmt.Errorf("missing port for %s", e.IP)
	}
	return netip.AddrPortFrom(addr.Unmap(), e.Port), nil
}
