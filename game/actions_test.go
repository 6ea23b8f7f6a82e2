package game

import (
	"errors"
	"testing"
)

func TestDecodeActionRejectsUnknownKind(t *testing.T) {
	_, err := DecodeAction([]byte(`{"kind":"launch_rocket"}`))
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Expected ErrUnknownAction, got %v", err)
	}
}

func TestDecodeActionRejectsMissingPayload(t *testing.T) {
	cases := []string{
		`{"kind":"purchase_building"}`,
		`{"kind":"recruit_employee"}`,
		`{"kind":"attack"}`,
		`{"kind":"intelligence"}`,
		`{"kind":"move"}`,
	}
	for _, raw := range cases {
		if _, err := DecodeAction([]byte(raw)); !errors.Is(err, ErrMissingPayload) {
			t.Errorf("DecodeAction(%s) = %v, want ErrMissingPayload", raw, err)
		}
	}
}

func TestDecodeActionMalformedJSON(t *testing.T) {
	if _, err := DecodeAction([]byte(`{not json`)); err == nil {
		t.Error("Malformed JSON should be rejected")
	}
}

func TestDecodeActionValid(t *testing.T) {
	action, err := DecodeAction([]byte(`{"kind":"attack","attack":{"target_id":"b","cost":100000}}`))
	if err != nil {
		t.Fatalf("DecodeAction failed: %v", err)
	}
	if action.Kind != KindAttack {
		t.Errorf("Kind = %s, want attack", action.Kind)
	}
	if action.TargetID() != "b" {
		t.Errorf("TargetID = %s, want b", action.TargetID())
	}
	if action.Cost() != 100_000 {
		t.Errorf("Cost = %d, want 100000", action.Cost())
	}
}

func TestMoveIsFree(t *testing.T) {
	action := Action{Kind: KindMove, ActorID: "a", Move: &MovePayload{X: 3, Y: 4}}
	if action.Cost() != 0 {
		t.Errorf("Move cost = %d, want 0", action.Cost())
	}
}

func TestSuccessChanceSkillAdjustment(t *testing.T) {
	// Baseline skill 50 leaves the base chance untouched.
	if got := successChance(KindAttack, 50); got != 40 {
		t.Errorf("successChance(attack, 50) = %d, want 40", got)
	}
	// High skill improves, capped at 100.
	if got := successChance(KindMove, 100); got != 100 {
		t.Errorf("successChance(move, 100) = %d, want 100", got)
	}
	// Low skill degrades.
	if got := successChance(KindAttack, 0); got != 30 {
		t.Errorf("successChance(attack, 0) = %d, want 30", got)
	}
}
