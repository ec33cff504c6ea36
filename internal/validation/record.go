package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/iudanet/medsync/internal/models"
)

// TimePattern определяет формат времени приёма: HH:MM, 24 часа
var TimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

const (
	// MaxNameLen максимальная длина названия лекарства
	MaxNameLen = 200
	// MaxScheduledTimes максимальное число приёмов в сутки
	MaxScheduledTimes = 24

	dateLayout = "2006-01-02"
)

// ValidateRecord проверяет поля записи, которые задает пользователь.
// ID и Status не проверяются: их назначает репозиторий.
func ValidateRecord(r models.Record) error {
	if r.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if len(r.Name) > MaxNameLen {
		return fmt.Errorf("name must not exceed %d characters", MaxNameLen)
	}

	if len(r.ScheduledTimes) > MaxScheduledTimes {
		return fmt.Errorf("at most %d scheduled times are allowed", MaxScheduledTimes)
	}

	for i, t := range r.ScheduledTimes {
		if !TimePattern.MatchString(t) {
			return fmt.Errorf("scheduled time %d: %q is not HH:MM", i, t)
		}
	}

	start, err := parseDate("start date", r.StartDate)
	if err != nil {
		return err
	}
	end, err := parseDate("end date", r.EndDate)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return fmt.Errorf("end date %s is before start date %s", r.EndDate, r.StartDate)
	}

	return nil
}

// parseDate разбирает дату YYYY-MM-DD; пустая строка = не задано
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q must be YYYY-MM-DD", field, value)
	}
	return t, nil
}
