package council

import (
	"errors"
	"testing"
)

func TestSessionGateExclusivity(t *testing.T) {
	s := NewSessionState("s1", "m", "", 3)

	if _, err := s.openGate(GateArbitration, ArbitrationOptions()); err != nil {
		t.Fatalf("openGate() error = %v", err)
	}
	if _, err := s.openGate(GateMerge, MergeOptions()); !errors.Is(err, ErrGateOpen) {
		t.Fatalf("second openGate() error = %v, want ErrGateOpen", err)
	}

	s.clearGate()
	if _, err := s.openGate(GateMerge, MergeOptions()); err != nil {
		t.Fatalf("openGate() after clear error = %v", err)
	}
}

func TestSessionAdoptOnce(t *testing.T) {
	s := NewSessionState("s1", "m", "", 3)

	if err := s.adopt(Proposal{Title: "first"}, "proposal"); err != nil {
		t.Fatalf("adopt() error = %v", err)
	}
	if err := s.adopt(Proposal{Title: "second"}, "objection"); !errors.Is(err, ErrAlreadyAdopted) {
		t.Fatalf("second adopt() error = %v, want ErrAlreadyAdopted", err)
	}

	got, ok := s.Adopted()
	if !ok || got.Title != "first" {
		t.Errorf("Adopted() = %v %v, want the first payload", got, ok)
	}
}

func TestSessionRoundFloor(t *testing.T) {
	s := NewSessionState("s1", "m", "", 0)
	if s.MaxRounds != 1 {
		t.Errorf("MaxRounds = %d, want floor of 1", s.MaxRounds)
	}
	if s.Round() != 1 {
		t.Errorf("initial round = %d, want 1", s.Round())
	}
}

func TestSessionIncrementRoundBoundary(t *testing.T) {
	s := NewSessionState("s1", "m", "", 2)

	if exceeded := s.incrementRound(); exceeded {
		t.Error("round 2 of 2 should not exceed the budget")
	}
	if exceeded := s.incrementRound(); !exceeded {
		t.Error("round 3 of 2 must exceed the budget")
	}
}

func TestSnapshotIsIsolatedCopy(t *testing.T) {
	s := NewSessionState("s1", "mission", "profile-x", 3)
	s.appendRejection(RejectionRecord{Round: 1, Reason: "r"})

	snap := s.Snapshot()
	snap.RejectionHistory[0].Reason = "mutated"
	snap.Mission = "mutated"

	again := s.Snapshot()
	if again.RejectionHistory[0].Reason != "r" {
		t.Error("snapshot mutation leaked into session state")
	}
	if again.Mission != "mission" {
		t.Error("snapshot mission mutation leaked")
	}
}

func TestSnapshotExposesPendingGate(t *testing.T) {
	s := NewSessionState("s1", "m", "", 3)
	if s.Snapshot().AwaitingDecision {
		t.Error("fresh session should not await a decision")
	}

	if _, err := s.openGate(GatePreMortem, RiskOptions()); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if !snap.AwaitingDecision || snap.GateKind != GatePreMortem {
		t.Errorf("snapshot gate = %+v, want pending premortem", snap)
	}
	if len(snap.GateOptions) != 2 {
		t.Errorf("gate options = %v", snap.GateOptions)
	}
}
