// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type showRequest struct {
	Action  string `cbor:"action"`
	EventID uint32 `cbor:"event_id"`
}

func TestMarshalDeterministic(t *testing.T) {
	first, err := Marshal(map[string]any{"action": "show", "event_id": 7, "b": true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(map[string]any{"b": true, "event_id": 7, "action": "show"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("map key order changed the encoding: %x != %x", first, second)
	}
}

func TestMapIntoStruct(t *testing.T) {
	data, err := Marshal(map[string]any{"action": "show", "event_id": 12})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var request showRequest
	if err := Unmarshal(data, &request); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if request.Action != "show" || request.EventID != 12 {
		t.Errorf("decoded %+v, want {show 12}", request)
	}
}

func TestAnyTargetUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"nested": map[string]any{"rows": 3}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if _, ok := outer["nested"].(map[string]any); !ok {
		t.Errorf("nested value is %T, want map[string]any", outer["nested"])
	}
}

func TestStreamCarriesSequence(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for id := uint32(1); id <= 3; id++ {
		if err := encoder.Encode(showRequest{Action: "show", EventID: id}); err != nil {
			t.Fatalf("Encode(%d): %v", id, err)
		}
	}

	decoder := NewDecoder(&buffer)
	for id := uint32(1); id <= 3; id++ {
		var request showRequest
		if err := decoder.Decode(&request); err != nil {
			t.Fatalf("Decode(%d): %v", id, err)
		}
		if request.EventID != id {
			t.Errorf("message %d decoded event_id %d", id, request.EventID)
		}
	}
}
