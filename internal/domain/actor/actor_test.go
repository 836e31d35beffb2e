package actor_test

import (
	"encoding/json"
	"testing"

	"github.com/kestrelworks/crewdeck/internal/domain/actor"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		operator bool
		agentID  string
	}{
		{name: "empty string is operator", input: "", operator: true},
		{name: "operator token", input: "operator", operator: true},
		{name: "agent id", input: "agent-123", agentID: "agent-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := actor.Parse(tt.input)
			if a.IsOperator() != tt.operator {
				t.Errorf("IsOperator() = %v, want %v", a.IsOperator(), tt.operator)
			}
			id, ok := a.AgentID()
			if tt.operator {
				if ok {
					t.Error("operator must not report an agent id")
				}
				return
			}
			if !ok || id != tt.agentID {
				t.Errorf("AgentID() = %q, %v, want %q, true", id, ok, tt.agentID)
			}
		})
	}
}

func TestZeroValueIsOperator(t *testing.T) {
	var a actor.Actor
	if !a.IsOperator() {
		t.Error("zero value must be the operator")
	}
	if a.String() != "operator" {
		t.Errorf("String() = %q, want operator", a.String())
	}
}

func TestString(t *testing.T) {
	if got := actor.Operator().String(); got != "operator" {
		t.Errorf("operator String() = %q", got)
	}
	if got := actor.Agent("abc").String(); got != "abc" {
		t.Errorf("agent String() = %q", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	for _, a := range []actor.Actor{actor.Operator(), actor.Agent("agent-9")} {
		data, err := json.Marshal(a)
		if err != nil {
			t.Fatal(err)
		}
		var back actor.Actor
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatal(err)
		}
		if back != a {
			t.Errorf("round trip changed %v into %v", a, back)
		}
	}
}

func TestUnmarshalRejectsNonString(t *testing.T) {
	var a actor.Actor
	if err := json.Unmarshal([]byte(`{"bad":1}`), &a); err == nil {
		t.Error("expected error for non-string payload")
	}
}
