package models

import "testing"

func TestScriptValidate(t *testing.T) {
	s := &Script{Text: "OPENING\nAgent: Hi!"}
	if err := s.Validate(); err != nil {
		t.Errorf("expected valid script, got %v", err)
	}
	s.Text = "   "
	if err := s.Validate(); err == nil {
		t.Error("expected error for empty script text")
	}
}

func TestTurnRequestValidate(t *testing.T) {
	r := &TurnRequest{Input: "yes"}
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
	r.Input = ""
	if err := r.Validate(); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestSessionRequestValidate(t *testing.T) {
	r := &SessionRequest{ScriptID: "scr_123"}
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
	r.ScriptID = ""
	if err := r.Validate(); err == nil {
		t.Error("expected error for missing script_id")
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	ok := Success(map[string]string{"k": "v"})
	if ok.Status != string(APIStatusOK) || ok.Result == nil {
		t.Errorf("unexpected success response %+v", ok)
	}

	withMsg := SuccessWithMessage("created", nil)
	if withMsg.Message != "created" || withMsg.Status != string(APIStatusOK) {
		t.Errorf("unexpected success-with-message response %+v", withMsg)
	}

	er := Error("boom")
	if er.Status != string(APIStatusError) || er.Message != "boom" {
		t.Errorf("unexpected error response %+v", er)
	}
}
