package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/centrifugal/centrifuge"

	"github.com/thomaswerner858/DinnerMatch/internal/adapter/metrics"
	"github.com/thomaswerner858/DinnerMatch/internal/domain"
)

const publishTimeout = 2 * time.Second

type matchEvent struct {
	Type      string `json:"type"`
	RecipeID  string `json:"recipeId"`
	Day       string `json:"day"`
	PartnerID string `json:"partnerId"`
}

// MatchPublisher pushes match celebrations to the viewer's WebSocket channel.
type MatchPublisher struct {
	node      *centrifuge.Node
	wsMetrics *metrics.WebSocketMetrics
}

func NewMatchPublisher(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *MatchPublisher {
	return &MatchPublisher{node: node, wsMetrics: wsMetrics}
}

func (p *MatchPublisher) NotifyMatch(ctx context.Context, match domain.Match) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	data, err := json.Marshal(matchEvent{
		Type:      "match",
		RecipeID:  match.RecipeID,
		Day:       match.Day,
		PartnerID: match.PartnerID,
	})
	if err != nil {
		return fmt.Errorf("marshal match event: %w", err)
	}

	channel := MatchChannel(match.UserID)
	if err := p.publish(ctx, channel, data); err != nil {
		if p.wsMetrics != nil {
			p.wsMetrics.PublishErrors.Inc()
		}
		return fmt.Errorf("publish to channel %s: %w", channel, err)
	}

	if p.wsMetrics != nil {
		p.wsMetrics.MatchesPublished.Inc()
	}
	return nil
}

func (p *MatchPublisher) publish(ctx context.Context, channel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.node.Publish(channel, data)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
