package mintapi

import (
	"context"
	"fmt"
)

// Waiter blocks until the next call may be made
type Waiter interface {
	Wait(ctx context.Context) error
}

type pacedClient struct {
	client Client
	waiter Waiter
}

// NewPacedClient returns a Client that waits on w before every mint request
func NewPacedClient(c Client, w Waiter) Client {
	return &pacedClient{client: c, waiter: w}
}

func (p *pacedClient) CreateMintRequest(ctx context.Context, contractAddress string, assets []MintAsset) (*CreateMintRequestResult, error) {
	if err := p.waiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for mint request slot: %w", err)
	}
	return p.client.CreateMintRequest(ctx, contractAddress, assets)
}
