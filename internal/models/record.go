package models

import "fmt"

// RecordStatus статус приёма лекарства.
// Закрытое перечисление: других значений не существует.
type RecordStatus string

const (
	StatusPending RecordStatus = "PENDING"
	StatusTaken   RecordStatus = "TAKEN"
	StatusSkipped RecordStatus = "SKIPPED"
	StatusSnoozed RecordStatus = "SNOOZED"
)

// Statuses returns every valid status in declaration order.
func Statuses() []RecordStatus {
	return []RecordStatus{StatusPending, StatusTaken, StatusSkipped, StatusSnoozed}
}

// Valid reports whether s is one of the four known statuses.
func (s RecordStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusSkipped, StatusSnoozed:
		return true
	}
	return false
}

func (s RecordStatus) String() string {
	return string(s)
}

// ParseStatus parses an exact status name. Unknown names are an error,
// there is no fallback value.
func ParseStatus(s string) (RecordStatus, error) {
	status := RecordStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown record status %q", s)
	}
	return status, nil
}

// Record представляет одну запись о лекарстве.
// ID назначается один раз при создании и никогда не меняется,
// Status меняется по принципу last-write-wins.
type Record struct {
	ID             string       `json:"id" yaml:"id"`
	Name           string       `json:"name" yaml:"name"`
	Dosage         string       `json:"dosage" yaml:"dosage"`
	Frequency      string       `json:"frequency" yaml:"frequency"`
	Instructions   string       `json:"instructions" yaml:"instructions"`
	StartDate      string       `json:"startDate" yaml:"start_date"` // пустая строка = не задано
	EndDate        string       `json:"endDate" yaml:"end_date"`     // пустая строка = не задано
	Status         RecordStatus `json:"status" yaml:"status"`
	ScheduledTimes []string     `json:"scheduledTimes" yaml:"scheduled_times"` // HH:MM, первый элемент - ближайший приём
}

// PrimaryTime returns the first scheduled time, or "" when none are set.
func (r *Record) PrimaryTime() string {
	if len(r.ScheduledTimes) == 0 {
		return ""
	}
	return r.ScheduledTimes[0]
}

// Clone создает глубокую копию записи
func (r *Record) Clone() Record {
	clone := *r
	if r.ScheduledTimes != nil {
		clone.ScheduledTimes = make([]string, len(r.ScheduledTimes))
		copy(clone.ScheduledTimes, r.ScheduledTimes)
	}
	return clone
}

// CloneRecords deep-copies a record sequence preserving order.
// A nil input yields an empty, non-nil slice.
func CloneRecords(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for i := range records {
		out = append(out, records[i].Clone())
	}
	return out
}
