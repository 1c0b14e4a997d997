package graph

import "testing"

func TestWorkflowState_Hash_DeterministicAcrossMapOrder(t *testing.T) {
	s1 := WorkflowState{ID: "w1", Data: map[string]any{"a": 1, "b": 2, "c": 3}}
	s2 := WorkflowState{ID: "w1", Data: map[string]any{"c": 3, "b": 2, "a": 1}}

	h1, err := s1.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := s2.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Error("Hash should be independent of map insertion order")
	}
}

func TestWorkflowState_Hash_DiffersOnDataChange(t *testing.T) {
	s1 := WorkflowState{ID: "w1", Data: map[string]any{"a": 1}}
	s2 := WorkflowState{ID: "w1", Data: map[string]any{"a": 2}}

	h1, _ := s1.Hash()
	h2, _ := s2.Hash()
	if h1 == h2 {
		t.Error("Hash should differ when Data differs")
	}
}

func TestStateEvent_Hash_IgnoresPreviousHash(t *testing.T) {
	prev1 := "abc"
	prev2 := "xyz"
	e1 := StateEvent{EventType: EventNodeEntered, ExecutionID: "w1", NodeID: "n1", PreviousHash: &prev1}
	e2 := StateEvent{EventType: EventNodeEntered, ExecutionID: "w1", NodeID: "n1", PreviousHash: &prev2}

	h1, err := e1.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := e2.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Error("Hash should not depend on PreviousHash")
	}
}

func TestStateEvent_Hash_DiffersOnNodeID(t *testing.T) {
	e1 := StateEvent{EventType: EventNodeEntered, ExecutionID: "w1", NodeID: "n1"}
	e2 := StateEvent{EventType: EventNodeEntered, ExecutionID: "w1", NodeID: "n2"}

	h1, _ := e1.Hash()
	h2, _ := e2.Hash()
	if h1 == h2 {
		t.Error("Hash should differ when NodeID differs")
	}
}

func TestHashBytes_IsLowercaseHex(t *testing.T) {
	h := hashBytes([]byte("test"))
	if len(h) != 64 {
		t.Errorf("hashBytes length = %d, want 64 (sha256 hex)", len(h))
	}
	for _, r := range h {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Errorf("hashBytes produced non-lowercase-hex char %q", r)
		}
	}
}
