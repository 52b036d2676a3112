package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/companionly/booking-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event is a lifecycle-transition notification addressed to one party.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	PartyID int64
	Events  chan Event
	Done    chan struct{}
}

// Broker fans redis pubsub messages out to the SSE connections of each party.
// Delivery is fire-and-forget: a slow client drops events, never blocks a
// lifecycle operation.
type Broker struct {
	redis   *redisclient.Client
	clients map[int64]map[*Client]bool // partyID -> set of clients
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[int64]map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(partyID int64) *Client {
	client := &Client{
		PartyID: partyID,
		Events:  make(chan Event, 100),
		Done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[partyID] == nil {
		b.clients[partyID] = make(map[*Client]bool)
		go b.subscribeToRedis(partyID)
	}
	b.clients[partyID][client] = true
	clientCount := len(b.clients[partyID])
	b.mu.Unlock()

	log.Info().
		Int64("partyId", partyID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.PartyID]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.PartyID)
		}

		log.Info().
			Int64("partyId", client.PartyID).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, partyID int64, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.PartyChannel(partyID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(partyID int64) {
	channel := redisclient.PartyChannel(partyID)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Int64("partyId", partyID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(partyID, event)
		}
	}
}

func (b *Broker) broadcast(partyID int64, event Event) {
	b.mu.RLock()
	clients := b.clients[partyID]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Int64("partyId", partyID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[int64]map[*Client]bool)
}

func (b *Broker) ClientCount(partyID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[partyID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
