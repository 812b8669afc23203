package ros

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"
	"github.com/rs/zerolog/log"

	"gatewayipsync/config"
)

const dialTimeout = 20 * time.Second

// RouterOSClient discovers the public address straight from the router's WAN
// interface instead of asking an echo service.
type RouterOSClient struct {
	host  string
	user  string
	pass  string
	iface string
	ipv6  bool
}

func NewClient(conf config.RouterOSConfig) *RouterOSClient {
	log.Info().Msgf("[ros]: using %s@%s interface %s", conf.User, conf.Host, conf.Interface)
	return &RouterOSClient{
		host:  conf.Host,
		user:  conf.User,
		pass:  conf.Password,
		iface: conf.Interface,
		ipv6:  conf.IPv6,
	}
}

// Discover never returns an error; a failed lookup is logged and reported
// as no address.
func (r *RouterOSClient) Discover(ctx context.Context) (string, bool) {
	if err := ctx.Err(); err != nil {
		return "", false
	}
	addr, err := r.lookup()
	if err != nil {
		log.Error().Err(err).Msgf("[ros]: failed to read %s address, error suppressed", r.iface)
		return "", false
	}
	return addr.String(), true
}

func (r *RouterOSClient) lookup() (netip.Addr, error) {
	c, err := routeros.DialTimeout(r.host, r.user, r.pass, dialTimeout)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dial %s: %w", r.host, err)
	}
	defer c.Close()

	command := "/ip/address/print"
	if r.ipv6 {
		command = "/ipv6/address/print"
	}
	reply, err := c.Run(command, "?=interface="+r.iface)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s on %s: %w", command, r.iface, err)
	}
	log.Debug().Msgf("[ros]: %d addresses on %s", len(reply.Re), r.iface)
	return filterAddr(reply.Re)
}

// filterAddr picks the first public address, skipping unparsable, private
// and link-local entries.
func filterAddr(replies []*proto.Sentence) (netip.Addr, error) {
	replies = slices.DeleteFunc(slices.Clone(replies), func(sentence *proto.Sentence) bool {
		prefix, err := netip.ParsePrefix(sentence.Map["address"])
		if err != nil {
			log.Debug().Msgf("[ros]: skipping unparsable address %q", sentence.Map["address"])
			return true
		}
		addr := prefix.Addr()
		return addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLoopback()
	})

	if len(replies) == 0 {
		return netip.Addr{}, errors.New("no public address found")
	}
	if len(replies) > 1 {
		log.Warn().Msgf("[ros]: %d public addresses found, using the first", len(replies))
	}

	prefix, err := netip.ParsePrefix(replies[0].Map["address"])
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse address: %w", err)
	}
	return prefix.Addr(), nil
}
