// Package validate checks single free-text values and multi-line records typed by
// Telegram users. Failures are *domain.ValidationError values whose messages are
// shown to the user as-is.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"telegram-invoicing-bot/internal/domain"
)

// Minimum lengths used across the flows.
const (
	MinNameLen        = 2
	MinDescriptionLen = 10
	MinAddressLen     = 5
	MinPhoneLen       = 8
	MinUnitLen        = 1
	MinSearchLen      = 2
)

var (
	emailRe   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	phoneRe   = regexp.MustCompile(`^\+?[0-9][0-9 ().-]*$`)
	websiteRe = regexp.MustCompile(`^(https?://)?([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}(/\S*)?$`)
)

func problem(format string, args ...any) error {
	return domain.NewValidationError(fmt.Sprintf(format, args...))
}

// Required checks a non-empty string of at least min characters.
func Required(label, raw string, min int) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", problem("%s est obligatoire.", label)
	}
	if utf8.RuneCountInString(v) < min {
		return "", problem("%s doit contenir au moins %d caractères.", label, min)
	}
	return v, nil
}

func Email(label, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if !emailRe.MatchString(v) {
		return "", problem("%s n'est pas une adresse e-mail valide.", label)
	}
	return strings.ToLower(v), nil
}

func Phone(label, raw string) (string, error) {
	v, err := Required(label, raw, MinPhoneLen)
	if err != nil {
		return "", err
	}
	if !phoneRe.MatchString(v) {
		return "", problem("%s ne doit contenir que des chiffres, espaces et le préfixe +.", label)
	}
	return v, nil
}

func Website(label, raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if !websiteRe.MatchString(v) {
		return "", problem("%s n'est pas une adresse web valide.", label)
	}
	return v, nil
}

// normalizeNumber accepts "1 500,50" as well as "1500.50".
func normalizeNumber(raw string) string {
	v := strings.TrimSpace(raw)
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, " ", "")
	return strings.ReplaceAll(v, ",", ".")
}

// parseFinite rejects NaN and infinities, which ParseFloat accepts.
func parseFinite(label, raw string) (float64, error) {
	f, err := strconv.ParseFloat(normalizeNumber(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, problem("%s doit être un nombre.", label)
	}
	return f, nil
}

// PositiveNumber accepts any finite number strictly greater than zero.
func PositiveNumber(label, raw string) (float64, error) {
	f, err := parseFinite(label, raw)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, problem("%s doit être supérieur à 0.", label)
	}
	return f, nil
}

func NonNegativeInt(label, raw string) (int64, error) {
	n, err := strconv.ParseInt(normalizeNumber(raw), 10, 64)
	if err != nil {
		return 0, problem("%s doit être un nombre entier.", label)
	}
	if n < 0 {
		return 0, problem("%s ne peut pas être négatif.", label)
	}
	return n, nil
}

func PositiveInt(label, raw string) (int64, error) {
	n, err := NonNegativeInt(label, raw)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, problem("%s doit être supérieur à 0.", label)
	}
	return n, nil
}

// Percentage accepts 0 to 100 inclusive.
func Percentage(label, raw string) (float64, error) {
	f, err := parseFinite(label, raw)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 100 {
		return 0, problem("%s doit être compris entre 0 et 100.", label)
	}
	return f, nil
}

// OneOf checks enum membership case-insensitively and returns the canonical value.
func OneOf(label, raw string, allowed []string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, a := range allowed {
		if v == strings.ToLower(a) {
			return a, nil
		}
	}
	return "", problem("%s doit être l'une des valeurs : %s.", label, strings.Join(allowed, ", "))
}

func SearchQuery(raw string) (string, error) {
	return Required("La recherche", raw, MinSearchLen)
}

// FormatNumber renders a validated number in canonical form for storage.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
