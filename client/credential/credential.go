package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/rs/zerolog/log"
)

// Provider hands out bearer tokens for a scope. Caching, if any, is the
// provider's own business.
type Provider interface {
	Token(ctx context.Context, scope string) (string, error)
}

type Azure struct {
	cred azcore.TokenCredential
}

// NewAzure uses the default Azure credential chain: environment, workload
// identity, managed identity, then the developer CLIs.
func NewAzure() (*Azure, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}
	log.Info().Msg("[credential]: using default azure credential chain")
	return &Azure{cred: cred}, nil
}

func NewAzureFromCredential(cred azcore.TokenCredential) *Azure {
	return &Azure{cred: cred}
}

func (a *Azure) Token(ctx context.Context, scope string) (string, error) {
	tok, err := a.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}})
	if err != nil {
		return "", fmt.Errorf("get token for %s: %w", scope, err)
	}
	return tok.Token, nil
}

// Static always returns the same token.
type Static string

func (s Static) Token(_ context.Context, _ string) (string, error) {
	if s == "" {
		return "", errors.New("static token is empty")
	}
	return string(s), nil
}
