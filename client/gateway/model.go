package gateway

import (
	"encoding/json"
	"fmt"
	"maps"
)

const (
	propertiesKey       = "properties"
	gatewayIPAddressKey = "gatewayIpAddress"
)

// LocalNetworkGateway is the ARM representation of a local network gateway.
// Only the peer address is typed; everything else is carried through untouched
// so a PUT never drops settings this service does not know about.
type LocalNetworkGateway struct {
	Properties Properties
	Extra      map[string]json.RawMessage
}

type Properties struct {
	GatewayIPAddress string
	Extra            map[string]json.RawMessage
}

func (p *Properties) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode gateway properties: %w", err)
	}
	p.GatewayIPAddress = ""
	if v, ok := raw[gatewayIPAddressKey]; ok {
		if err := json.Unmarshal(v, &p.GatewayIPAddress); err != nil {
			return fmt.Errorf("decode %s: %w", gatewayIPAddressKey, err)
		}
		delete(raw, gatewayIPAddressKey)
	}
	p.Extra = raw
	return nil
}

func (p Properties) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p.Extra)+1)
	maps.Copy(out, p.Extra)
	ip, err := json.Marshal(p.GatewayIPAddress)
	if err != nil {
		return nil, err
	}
	out[gatewayIPAddressKey] = ip
	return json.Marshal(out)
}

func (g *LocalNetworkGateway) UnmarshalJSON(data []byte) error {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode local network gateway: %w", err)
	}
	g.Properties = Properties{}
	if v, ok := raw[propertiesKey]; ok {
		if err := json.Unmarshal(v, &g.Properties); err != nil {
			return err
		}
		delete(raw, propertiesKey)
	}
	g.Extra = raw
	return nil
}

func (g LocalNetworkGateway) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(g.Extra)+1)
	maps.Copy(out, g.Extra)
	props, err := json.Marshal(g.Properties)
	if err != nil {
		return nil, err
	}
	out[propertiesKey] = props
	return json.Marshal(out)
}

// WithGatewayIP returns a copy carrying ip as the peer address.
func (g *LocalNetworkGateway) WithGatewayIP(ip string) *LocalNetworkGateway {
	cp := &LocalNetworkGateway{
		Properties: Properties{
			GatewayIPAddress: ip,
			Extra:            maps.Clone(g.Properties.Extra),
		},
		Extra: maps.Clone(g.Extra),
	}
	return cp
}
