package models

import "testing"

func TestParsePostback(t *testing.T) {
	data := "action=select_time&date=2026-02-09&start=10:00&end=11:00&summary=%E4%BC%9A%E8%AD%B0"
	got, err := ParsePostback(data)
	if err != nil {
		t.Fatalf("ParsePostback(%q) failed: %v", data, err)
	}
	if got.Action != PostbackSelectTime {
		t.Errorf("Action = %q, want select_time", got.Action)
	}
	if got.Date != "2026-02-09" || got.Start != "10:00" || got.End != "11:00" {
		t.Errorf("slot = %q %q-%q, want 2026-02-09 10:00-11:00", got.Date, got.Start, got.End)
	}
	if got.Summary != "会議" {
		t.Errorf("Summary = %q, want percent-decoded 会議", got.Summary)
	}
}

func TestParsePostbackEmailFields(t *testing.T) {
	data := "action=email_send&to=a%40example.com&subject=Re%3A+hello&body=thanks"
	got, err := ParsePostback(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.To != "a@example.com" {
		t.Errorf("To = %q", got.To)
	}
	if got.Subject != "Re: hello" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.Body != "thanks" {
		t.Errorf("Body = %q", got.Body)
	}
}

func TestParsePostbackIgnoresUnknownKeys(t *testing.T) {
	got, err := ParsePostback("action=cancel&nonsense=1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != PostbackCancel {
		t.Errorf("Action = %q, want cancel", got.Action)
	}
}

func TestParsePostbackMissingAction(t *testing.T) {
	for _, data := range []string{"", "date=2026-02-09", "action="} {
		if _, err := ParsePostback(data); err == nil {
			t.Errorf("ParsePostback(%q) succeeded, want error", data)
		}
	}
}

func TestParsePostbackMalformed(t *testing.T) {
	if _, err := ParsePostback("action=%zz"); err == nil {
		t.Error("ParsePostback with bad escape succeeded, want error")
	}
}
