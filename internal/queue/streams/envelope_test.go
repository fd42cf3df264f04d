package streams

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{
		EventID:    "evt-1",
		EventType:  EventExecTrigger,
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"execution_id":"exec-1","scout_id":"scout-1"}`),
	}
	raw, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalEnvelope(raw)
	if err != nil {
		t.Fatalf("UnmarshalEnvelope: %v", err)
	}
	if got.EventID != env.EventID || got.EventType != env.EventType {
		t.Errorf("round trip changed identity: %+v", got)
	}
}

func TestEnvelopeValidation(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
	}{
		{"missing event id", Envelope{EventType: "x", Data: json.RawMessage(`{}`)}},
		{"missing event type", Envelope{EventID: "e", Data: json.RawMessage(`{}`)}},
		{"missing data", Envelope{EventID: "e", EventType: "x"}},
		{"negative attempt", Envelope{EventID: "e", EventType: "x", Attempt: -1, Data: json.RawMessage(`{}`)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.env.ValidateBasic(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDecodeTrigger(t *testing.T) {
	data, _ := json.Marshal(ExecutionTriggered{ExecutionID: "exec-1", ScoutID: "scout-1"})
	env := Envelope{EventID: "e", EventType: EventExecTrigger, Data: data}

	trig, err := DecodeTrigger(env)
	if err != nil {
		t.Fatalf("DecodeTrigger: %v", err)
	}
	if trig.ExecutionID != "exec-1" || trig.ScoutID != "scout-1" {
		t.Errorf("trigger = %+v", trig)
	}

	env.EventType = "other.event"
	if _, err := DecodeTrigger(env); err == nil {
		t.Error("wrong event type should be rejected")
	}

	env.EventType = EventExecTrigger
	env.Data = json.RawMessage(`{}`)
	if _, err := DecodeTrigger(env); err == nil {
		t.Error("missing execution_id should be rejected")
	}
}
