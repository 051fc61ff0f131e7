package actions

import "log/slog"

// Action is a command issued by the upstream decision layer.
type Action string

const (
	// ShareLocation asks connectors to publish the current position.
	ShareLocation Action = "share location"
	// Idle is a no-op action; connectors ignore it.
	Idle Action = "idle"
)

// Connector handles a dispatched action. Connectors never return errors:
// failures are terminal inside the connector and visible only through
// its logs, so a broken integration cannot stall the dispatch path.
type Connector interface {
	Connect(action Action)
}

// Dispatcher fans actions out to every registered connector.
type Dispatcher struct {
	connectors []Connector
	log        *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given connectors.
func NewDispatcher(log *slog.Logger, connectors ...Connector) *Dispatcher {
	return &Dispatcher{connectors: connectors, log: log}
}

// Register adds a connector. Not safe to call concurrently with Dispatch.
func (d *Dispatcher) Register(c Connector) {
	d.connectors = append(d.connectors, c)
}

// Dispatch delivers the action to all connectors in registration order.
func (d *Dispatcher) Dispatch(action Action) {
	d.log.Info("dispatching action", "action", string(action), "connectors", len(d.connectors))
	for _, c := range d.connectors {
		c.Connect(action)
	}
}
