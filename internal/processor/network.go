package processor

import (
	"context"

	"github.com/cbre360/js-sdk/internal/network"
	"github.com/cbre360/js-sdk/internal/model"
)

// Network is the NetworkDataProcessor: every operation goes to the network;
// no local side effects whatsoever (spec 4.6).
type Network struct {
	net network.Repository
}

// NewNetwork constructs a Network processor.
func NewNetwork(net network.Repository) *Network {
	return &Network{net: net}
}

func (p *Network) Find(ctx context.Context, collection, _ string, q *model.Query) <-chan FindResult {
	ch := make(chan FindResult, 1)
	go func() {
		defer close(ch)
		resp, err := p.net.Read(ctx, collection, q, network.ReadOptions{DataOnly: true})
		if err != nil {
			ch <- FindResult{Error: err}
			return
		}
		ch <- FindResult{Entities: resp.Data}
	}()
	return ch
}

func (p *Network) FindByID(ctx context.Context, collection, _, id string) <-chan FindOneResult {
	ch := make(chan FindOneResult, 1)
	go func() {
		defer close(ch)
		e, err := p.net.ReadByID(ctx, collection, id)
		ch <- FindOneResult{Entity: e, Error: err}
	}()
	return ch
}

func (p *Network) Count(ctx context.Context, collection, _ string, q *model.Query) (int, error) {
	n, _, err := p.net.Count(ctx, collection, q, network.ReadOptions{DataOnly: true})
	return n, err
}

func (p *Network) Group(ctx context.Context, collection, _ string, agg *model.Aggregation) ([]map[string]any, error) {
	return p.net.Group(ctx, collection, agg)
}

func (p *Network) Create(ctx context.Context, collection, _ string, entities []model.Entity) ([]model.Entity, error) {
	return p.net.Create(ctx, collection, entities)
}

func (p *Network) Update(ctx context.Context, collection, _ string, entities []model.Entity) ([]model.Entity, error) {
	for _, e := range entities {
		if !e.HasID() {
			return nil, model.NewError(model.KindKinvey, "update requires an _id")
		}
	}
	return p.net.Update(ctx, collection, entities)
}

func (p *Network) RemoveByID(ctx context.Context, collection, _, id string) (int, error) {
	if id == "" {
		return 0, nil
	}
	if err := p.net.DeleteByID(ctx, collection, id); err != nil {
		return 0, err
	}
	return 1, nil
}

func (p *Network) Remove(ctx context.Context, collection, _ string, q *model.Query) (int, error) {
	resp, err := p.net.Read(ctx, collection, q, network.ReadOptions{DataOnly: true})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range resp.Data {
		if err := p.net.DeleteByID(ctx, collection, e.ID()); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
