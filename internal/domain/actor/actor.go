// Package actor models the identity that performed a mutation: either a
// roster agent (by id) or the human operator.
package actor

import (
	"encoding/json"
	"fmt"
)

// operatorToken is the wire representation of the operator identity.
const operatorToken = "operator"

// Actor is a tagged union: the operator, or an agent referenced by id.
// The zero value is the operator.
type Actor struct {
	agentID string
}

// Operator returns the operator actor.
func Operator() Actor {
	return Actor{}
}

// Agent returns an actor referencing the given agent id.
func Agent(agentID string) Actor {
	return Actor{agentID: agentID}
}

// IsOperator reports whether the actor is the human operator.
func (a Actor) IsOperator() bool {
	return a.agentID == ""
}

// AgentID returns the referenced agent id and whether the actor is an agent.
func (a Actor) AgentID() (string, bool) {
	return a.agentID, a.agentID != ""
}

// String returns the wire form: "operator" or the agent id.
func (a Actor) String() string {
	if a.agentID == "" {
		return operatorToken
	}
	return a.agentID
}

// Parse converts the wire form back into an Actor.
func Parse(s string) Actor {
	if s == "" || s == operatorToken {
		return Operator()
	}
	return Agent(s)
}

// MarshalJSON encodes the actor as its wire string.
func (a Actor) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes the wire string form.
func (a *Actor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("actor: %w", err)
	}
	*a = Parse(s)
	return nil
}
