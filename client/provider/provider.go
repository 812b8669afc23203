package provider

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/rs/zerolog/log"

	"gatewayipsync/client/provider/aliyun"
	"gatewayipsync/client/provider/tencent"
)

// DDNSProvider points a DNS record at an address, creating it when missing.
type DDNSProvider interface {
	Update(ip netip.Addr) error
}

// Mirror is a named DNS record kept in step with the gateway peer address.
type Mirror struct {
	Name string
	DDNSProvider
}

// FromConfig builds mirrors from the dns_mirror section, keyed by name. Each
// entry needs a "type" of aliyun or tencent plus that provider's settings.
func FromConfig(conf map[string]map[string]any) ([]Mirror, error) {
	names := make([]string, 0, len(conf))
	for name := range conf {
		names = append(names, name)
	}
	sort.Strings(names)

	mirrors := make([]Mirror, 0, len(conf))
	for _, name := range names {
		settings := conf[name]
		kind, _ := settings["type"].(string)

		var (
			p   DDNSProvider
			err error
		)
		switch kind {
		case "aliyun":
			p, err = aliyun.New(settings)
		case "tencent":
			p, err = tencent.New(settings)
		default:
			return nil, fmt.Errorf("dns mirror %s: unknown type %q", name, kind)
		}
		if err != nil {
			return nil, fmt.Errorf("dns mirror %s: %w", name, err)
		}
		log.Info().Msgf("[provider]: dns mirror %s (%s) configured", name, kind)
		mirrors = append(mirrors, Mirror{Name: name, DDNSProvider: p})
	}
	return mirrors, nil
}
