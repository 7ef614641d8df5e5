package kafka

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

type samplePayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope("ReservationCreated", "reservation-api", "42", "req-1", samplePayload{ID: 42, Name: "projector"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		t.Fatalf("event id %q is not a uuid: %v", env.EventID, err)
	}
	if env.EventVersion != 1 || env.OccurredAt.IsZero() {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeEnvelope(b)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.EventID != env.EventID || decoded.TraceID != "req-1" || decoded.CorrelationID != "42" {
		t.Fatalf("decoded = %+v", decoded)
	}
	p, err := UnwrapPayload[samplePayload](decoded.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if p != (samplePayload{ID: 42, Name: "projector"}) {
		t.Fatalf("payload = %+v", p)
	}

	if _, err := DecodeEnvelope([]byte("nope")); err == nil {
		t.Fatal("want decode error")
	}
}
