package comm

import (
	"encoding/json"

	"github.com/edaniels/golog"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const agentStateSubject = "lsc.agents.state"

// NatsBus is a Bus over a NATS connection, for runs where each planner
// instance lives in its own process. Messages are JSON-encoded
// AgentStateMsg values on a single shared subject.
type NatsBus struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	logger golog.Logger
}

// NewNatsBus connects to the given NATS URL.
func NewNatsBus(url string, logger golog.Logger) (*NatsBus, error) {
	nc, err := nats.Connect(url, nats.Name("lsc-dr-planner"))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}
	return &NatsBus{nc: nc, logger: logger}, nil
}

// Publish implements Bus.
func (b *NatsBus) Publish(msg AgentStateMsg) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding agent state")
	}
	return b.nc.Publish(agentStateSubject, raw)
}

// Subscribe implements Bus. Messages from the subscribing agent itself are
// dropped, so the handler only sees peers.
func (b *NatsBus) Subscribe(selfID int, handler func(AgentStateMsg)) error {
	sub, err := b.nc.Subscribe(agentStateSubject, func(m *nats.Msg) {
		var msg AgentStateMsg
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			b.logger.Warnw("dropping malformed agent state message", "error", err)
			return
		}
		if msg.ID == selfID {
			return
		}
		handler(msg)
	})
	if err != nil {
		return errors.Wrap(err, "subscribing to agent states")
	}
	b.sub = sub
	return nil
}

// Close implements Bus.
func (b *NatsBus) Close() error {
	var err error
	if b.sub != nil {
		err = multierr.Append(err, b.sub.Unsubscribe())
	}
	b.nc.Close()
	return err
}
