package presence

import "testing"

func TestAttachDetach(t *testing.T) {
	r := NewRegistry()

	r.Attach("c1", "alice", "Alice")
	if !r.IsOnline("alice") {
		t.Error("alice should be online after attach")
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}

	rec, last := r.Detach("c1")
	if rec.PlayerID != "alice" || rec.Username != "Alice" {
		t.Errorf("detached record = %+v", rec)
	}
	if !last {
		t.Error("single connection detach should report last")
	}
	if r.IsOnline("alice") {
		t.Error("alice should be offline after detach")
	}
}

func TestMultipleConnectionsPerPlayer(t *testing.T) {
	r := NewRegistry()

	r.Attach("c1", "alice", "Alice")
	r.Attach("c2", "alice", "Alice")
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1 distinct player", r.Count())
	}

	if _, last := r.Detach("c1"); last {
		t.Error("first detach of two must not be last")
	}
	if !r.IsOnline("alice") {
		t.Error("alice should stay online with one connection left")
	}
	if _, last := r.Detach("c2"); !last {
		t.Error("second detach must be last")
	}
}

func TestDetachUnknownConn(t *testing.T) {
	r := NewRegistry()
	if _, last := r.Detach("ghost"); last {
		t.Error("unknown connection must not report last")
	}
}

func TestSetGame(t *testing.T) {
	r := NewRegistry()
	r.Attach("c1", "alice", "Alice")

	r.SetGame("c1", "g1")
	rec, ok := r.Lookup("c1")
	if !ok || rec.GameID != "g1" {
		t.Errorf("record = %+v, want game g1", rec)
	}

	r.SetGame("c1", "")
	rec, _ = r.Lookup("c1")
	if rec.GameID != "" {
		t.Errorf("game attachment not cleared: %+v", rec)
	}

	// SetGame on an unknown connection is a no-op.
	r.SetGame("ghost", "g2")
	if _, ok := r.Lookup("ghost"); ok {
		t.Error("SetGame must not create records")
	}
}
