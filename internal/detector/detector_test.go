package detector

import (
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/mimamori/internal/models"
)

var now = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func fresh() models.StatusSnapshot {
	s := models.DefaultStatus()
	s.LastCheckIn = ago(time.Hour)
	s.LastMeal = ago(2 * time.Hour)
	s.LastMedicine = ago(3 * time.Hour)
	return s
}

func find(findings []models.Finding, c models.Category) (models.Finding, bool) {
	for _, f := range findings {
		if f.Category == c {
			return f, true
		}
	}
	return models.Finding{}, false
}

func TestDetect_FreshState(t *testing.T) {
	if got := Detect(fresh(), now); len(got) != 0 {
		t.Errorf("expected no findings, got %+v", got)
	}
}

func TestDetect_StaleCheckIn(t *testing.T) {
	s := fresh()
	s.LastCheckIn = ago(13 * time.Hour)

	got := Detect(s, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(got), got)
	}
	f := got[0]
	if f.Category != models.CategoryCheckIn || f.Severity != models.SeverityDanger {
		t.Errorf("got %s/%s, want check-in/danger", f.Category, f.Severity)
	}
	if !strings.Contains(f.Message, "13") {
		t.Errorf("message %q does not mention 13 hours", f.Message)
	}
	if f.Recommendation == "" {
		t.Error("danger finding has no recommendation")
	}
	if f.ElapsedHours != 13 {
		t.Errorf("ElapsedHours = %d, want 13", f.ElapsedHours)
	}
}

func TestDetect_NeverRecorded(t *testing.T) {
	s := fresh()
	s.LastMedicine = nil

	f, ok := find(Detect(s, now), models.CategoryMedicine)
	if !ok {
		t.Fatal("expected a medicine finding")
	}
	if f.Severity != models.SeverityDanger {
		t.Errorf("severity = %s, want danger", f.Severity)
	}
	if !strings.Contains(f.Message, "has never been recorded") {
		t.Errorf("message %q", f.Message)
	}
	if f.ElapsedHours != -1 {
		t.Errorf("ElapsedHours = %d, want -1", f.ElapsedHours)
	}
}

func TestDetect_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    models.Severity
	}{
		{"below warning", 5*time.Hour + 59*time.Minute, models.SeverityNone},
		{"exactly warning", 6 * time.Hour, models.SeverityWarning},
		{"between", 9 * time.Hour, models.SeverityWarning},
		{"exactly danger", 12 * time.Hour, models.SeverityDanger},
		{"past danger", 30 * time.Hour, models.SeverityDanger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fresh()
			s.LastCheckIn = ago(tt.elapsed)
			f, ok := find(Detect(s, now), models.CategoryCheckIn)
			if tt.want == models.SeverityNone {
				if ok {
					t.Errorf("unexpected finding %+v", f)
				}
				return
			}
			if !ok {
				t.Fatal("expected a check-in finding")
			}
			if f.Severity != tt.want {
				t.Errorf("severity = %s, want %s", f.Severity, tt.want)
			}
			if tt.want == models.SeverityWarning && f.Recommendation != "" {
				t.Errorf("warning finding should not carry a recommendation: %q", f.Recommendation)
			}
		})
	}
}

func TestDetect_ConditionalCategories(t *testing.T) {
	s := fresh()
	s.OutsideSince = ago(10 * time.Hour)
	s.AsleepSince = ago(20 * time.Hour)

	// Neither applies while home and awake
	if got := Detect(s, now); len(got) != 0 {
		t.Fatalf("expected no findings, got %+v", got)
	}

	s.IsOutside = true
	s.IsAwake = false
	got := Detect(s, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 findings, got %+v", got)
	}
	if got[0].Category != models.CategoryOuting || got[1].Category != models.CategorySleep {
		t.Errorf("findings out of table order: %s, %s", got[0].Category, got[1].Category)
	}
	for _, f := range got {
		if f.Severity != models.SeverityDanger {
			t.Errorf("%s severity = %s, want danger", f.Category, f.Severity)
		}
	}
}

func TestDetect_TableOrder(t *testing.T) {
	got := Detect(models.DefaultStatus(), now)
	want := []models.Category{models.CategoryCheckIn, models.CategoryMeal, models.CategoryMedicine}
	if len(got) != len(want) {
		t.Fatalf("got %d findings, want %d", len(got), len(want))
	}
	for i, c := range want {
		if got[i].Category != c {
			t.Errorf("finding %d = %s, want %s", i, got[i].Category, c)
		}
	}
}

func TestNew_CustomThresholds(t *testing.T) {
	d := New(Thresholds{{Category: models.CategoryMeal, Warning: 1, Danger: 2}})
	s := fresh()
	got := d.Detect(s, now)
	if len(got) != 1 || got[0].Category != models.CategoryMeal || got[0].Severity != models.SeverityDanger {
		t.Errorf("unexpected findings %+v", got)
	}
}
