package web

import (
	"fmt"

	"github.com/asaskevich/EventBus"
)

const (
	topicAuthChanged    = "web:auth-changed"
	topicCatalogChanged = "web:catalog-changed"
)

// AuthChange describes a login or logout of the browser session.
type AuthChange struct {
	Subject  string
	Email    string
	LoggedIn bool
}

// Events is the in-process notification bus of the UI. Publishing is
// synchronous: subscribers have run when Publish returns.
type Events interface {
	PublishAuthChanged(change AuthChange)
	OnAuthChanged(fn func(AuthChange)) error
	PublishCatalogChanged()
	OnCatalogChanged(fn func()) error
}

type busEvents struct {
	bus EventBus.Bus
}

func NewEvents() Events {
	return &busEvents{bus: EventBus.New()}
}

func (e *busEvents) PublishAuthChanged(change AuthChange) {
	e.bus.Publish(topicAuthChanged, change)
}

func (e *busEvents) OnAuthChanged(fn func(AuthChange)) error {
	if err := e.bus.Subscribe(topicAuthChanged, fn); err != nil {
		return fmt.Errorf("subscribe %s: %w", topicAuthChanged, err)
	}
	return nil
}

func (e *busEvents) PublishCatalogChanged() {
	e.bus.Publish(topicCatalogChanged)
}

func (e *busEvents) OnCatalogChanged(fn func()) error {
	if err := e.bus.Subscribe(topicCatalogChanged, fn); err != nil {
		return fmt.Errorf("subscribe %s: %w", topicCatalogChanged, err)
	}
	return nil
}
