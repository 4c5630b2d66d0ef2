package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation limits for user-supplied strings, enforced by the engine before
// any write.
const (
	TeamNameMinLen     = 2
	TeamNameMaxLen     = 40
	VacancyTitleMaxLen = 100
	VacancyDescMaxLen  = 1000
	VacancyTagMaxCount = 10
	VacancyNoteMaxLen  = 1000
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9]{6,20}$`)

// FormatUsername normalizes a username the way accounts are stored: trimmed
// and lowercased.
func FormatUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func UsernameIsValid(username string) bool {
	return usernamePattern.MatchString(username)
}

// FormatTeamName trims the name and collapses runs of spaces.
func FormatTeamName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func ValidateTeamProperties(p TeamProperties) error {
	n := utf8.RuneCountInString(p.Name)
	if n < TeamNameMinLen || n > TeamNameMaxLen {
		return fmt.Errorf("team name must be %d..%d characters", TeamNameMinLen, TeamNameMaxLen)
	}
	return nil
}

func ValidateVacancyProperties(p VacancyProperties) error {
	if utf8.RuneCountInString(p.Title) > VacancyTitleMaxLen {
		return fmt.Errorf("vacancy title exceeds %d characters", VacancyTitleMaxLen)
	}
	if utf8.RuneCountInString(p.Description) > VacancyDescMaxLen {
		return fmt.Errorf("vacancy description exceeds %d characters", VacancyDescMaxLen)
	}
	if len(p.Tags) > VacancyTagMaxCount {
		return fmt.Errorf("vacancy tag count exceeds %d", VacancyTagMaxCount)
	}
	switch p.State {
	case VacancyActive, VacancyClosed, VacancyCancelled, "":
	default:
		return fmt.Errorf("unknown vacancy state %q", p.State)
	}
	return nil
}
