package models

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/julianstephens/mimamori/internal/constants"
)

func TestParseActivityKind(t *testing.T) {
	for _, k := range ActivityKinds {
		got, err := ParseActivityKind(string(k))
		if err != nil {
			t.Errorf("ParseActivityKind(%q) unexpected error: %v", k, err)
		}
		if got != k {
			t.Errorf("ParseActivityKind(%q) = %q", k, got)
		}
	}

	if _, err := ParseActivityKind("nap"); err == nil {
		t.Error("ParseActivityKind(\"nap\") should fail")
	}
}

func TestActivityEvent_IsAlertWorthy(t *testing.T) {
	for _, k := range ActivityKinds {
		ev := ActivityEvent{Kind: k}
		if got, want := ev.IsAlertWorthy(), k == ActivityEmergency; got != want {
			t.Errorf("IsAlertWorthy(%s) = %v, want %v", k, got, want)
		}
	}
}

func TestActivityEvent_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		event   ActivityEvent
		wantErr bool
	}{
		{name: "valid", event: ActivityEvent{ID: "a", Kind: ActivityMeal, OccurredAt: now}},
		{name: "missing id", event: ActivityEvent{Kind: ActivityMeal, OccurredAt: now}, wantErr: true},
		{name: "unknown kind", event: ActivityEvent{ID: "a", Kind: "nap", OccurredAt: now}, wantErr: true},
		{name: "zero time", event: ActivityEvent{ID: "a", Kind: ActivityMeal}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAlert_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		alert   Alert
		wantErr bool
	}{
		{name: "valid emergency", alert: Alert{ID: "x", Kind: AlertEmergency, Message: "m", CreatedAt: now}},
		{name: "empty message", alert: Alert{ID: "x", Kind: AlertWarning, CreatedAt: now}, wantErr: true},
		{name: "bad kind", alert: Alert{ID: "x", Kind: "loud", Message: "m", CreatedAt: now}, wantErr: true},
		{name: "missing created_at", alert: Alert{ID: "x", Kind: AlertInfo, Message: "m"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.alert.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Alert.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFinding_AlertMapping(t *testing.T) {
	f := Finding{Severity: SeverityDanger, Message: "No check-in for 13 hours", Recommendation: "Call them"}
	if f.AlertKind() != AlertEmergency {
		t.Errorf("danger AlertKind() = %s, want emergency", f.AlertKind())
	}
	if got, want := f.AlertMessage(), "No check-in for 13 hours. Call them"; got != want {
		t.Errorf("AlertMessage() = %q, want %q", got, want)
	}

	w := Finding{Severity: SeverityWarning, Message: "No meal for 9 hours"}
	if w.AlertKind() != AlertWarning {
		t.Errorf("warning AlertKind() = %s, want warning", w.AlertKind())
	}
	if w.AlertMessage() != w.Message {
		t.Errorf("AlertMessage() without recommendation = %q", w.AlertMessage())
	}
}

func TestRelayRequest_Validate(t *testing.T) {
	r := RelayRequest{Message: "hi"}
	if err := r.Validate(); !errors.Is(err, ErrRelayIncomplete) {
		t.Errorf("Validate() error = %v, want %v", err, ErrRelayIncomplete)
	}
	r.DeliveryToken = "tok"
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestSettingsRoundTripThroughMap(t *testing.T) {
	in := Settings{
		Timezone:             "Asia/Tokyo",
		NotificationsEnabled: true,
		RelayEnabled:         true,
		NotifyKinds:          []ActivityKind{ActivityCheckIn, ActivityOuting},
		DetectIntervalSec:    60,
		InitialDelaySec:      5,
		CooldownSec:          1800,
	}

	out, err := MapToSettings(SettingsToMap(in))
	if err != nil {
		t.Fatalf("MapToSettings() error: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("settings mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestMapToSettings_InvalidValues(t *testing.T) {
	if _, err := MapToSettings(map[string]string{constants.SettingCooldownSec: "soon"}); err == nil {
		t.Error("expected error for non-numeric cooldown")
	}
	if _, err := MapToSettings(map[string]string{constants.SettingNotifyKinds: "meal,nap"}); err == nil {
		t.Error("expected error for unknown notify kind")
	}
}

func TestSettings_ShouldRelay(t *testing.T) {
	s := DefaultSettings()

	if !s.ShouldRelay(ActivityCheckIn) {
		t.Error("check_in should be relayed by default")
	}
	if s.ShouldRelay(ActivitySleep) {
		t.Error("sleep should not be relayed by default")
	}

	s.NotifyKinds = []ActivityKind{}
	if !s.ShouldRelay(ActivityEmergency) {
		t.Error("emergency must always be relayed")
	}
}
