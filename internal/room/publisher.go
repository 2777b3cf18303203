package room

import "github.com/google/uuid"

// Publisher adapts the hub to the coordinator's EventPublisher
// interface. Events published here never exclude a connection; REST
// mutations have no originating socket.
type Publisher struct {
	hub *Hub
}

func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

func (p *Publisher) Publish(listID uuid.UUID, event string, payload any) {
	p.hub.Publish(listID, event, payload, nil)
}
