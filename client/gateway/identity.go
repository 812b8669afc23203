package gateway

import (
	"errors"
	"fmt"
	"net/url"
)

const (
	DefaultManagementEndpoint = "https://management.azure.com"
	ManagementScope           = "https://management.azure.com/.default"

	apiVersion = "2020-04-01"
)

// Identity addresses a single local network gateway resource.
type Identity struct {
	SubscriptionID string
	ResourceGroup  string
	GatewayName    string
}

func NewIdentity(subscriptionID, resourceGroup, gatewayName string) (Identity, error) {
	id := Identity{
		SubscriptionID: subscriptionID,
		ResourceGroup:  resourceGroup,
		GatewayName:    gatewayName,
	}
	var missing []error
	if subscriptionID == "" {
		missing = append(missing, errors.New("subscription id is required"))
	}
	if resourceGroup == "" {
		missing = append(missing, errors.New("resource group is required"))
	}
	if gatewayName == "" {
		missing = append(missing, errors.New("local gateway name is required"))
	}
	if len(missing) != 0 {
		return Identity{}, fmt.Errorf("invalid gateway identity: %w", errors.Join(missing...))
	}
	return id, nil
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s/%s", id.SubscriptionID, id.ResourceGroup, id.GatewayName)
}

// URL builds the ARM address of the gateway under the given management endpoint.
func (id Identity) URL(endpoint string) string {
	if endpoint == "" {
		endpoint = DefaultManagementEndpoint
	}
	return fmt.Sprintf(
		"%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/localNetworkGateways/%s?api-version=%s",
		endpoint,
		url.PathEscape(id.SubscriptionID),
		url.PathEscape(id.ResourceGroup),
		url.PathEscape(id.GatewayName),
		apiVersion,
	)
}
