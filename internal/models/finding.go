package models

type Severity string

const (
	SeverityNone    Severity = "none"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

type Category string

const (
	CategoryCheckIn  Category = "check-in"
	CategoryMeal     Category = "meal"
	CategoryMedicine Category = "medicine"
	CategoryOuting   Category = "outing"
	CategorySleep    Category = "sleep"
)

// Finding is a transient detector output. It is never persisted; only the Alert derived from it is.
type Finding struct {
	Severity       Severity `json:"severity"`
	Category       Category `json:"category"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation,omitempty"`
	// ElapsedHours is floor(elapsed); -1 when the category has never been recorded.
	ElapsedHours int `json:"elapsed_hours"`
}

// AlertKind maps the finding severity onto the alert it produces.
func (f Finding) AlertKind() AlertKind {
	switch f.Severity {
	case SeverityDanger:
		return AlertEmergency
	case SeverityWarning:
		return AlertWarning
	}
	return AlertInfo
}

// AlertMessage joins the message and recommendation into the alert text.
func (f Finding) AlertMessage() string {
	if f.Recommendation == "" {
		return f.Message
	}
	return f.Message + ". " + f.Recommendation
}
