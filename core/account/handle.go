package account

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/escolarapp/escolar/core"
)

const (
	maxHandleLen      = 20
	maxHandleAttempts = 100
)

// ErrHandleExhausted is returned when a base handle and all of its numbered
// variants are already taken.
var ErrHandleExhausted = errors.New("no available username variant for this name")

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	handleCharRegex = regexp.MustCompile(`[^a-z0-9_]`)

	diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// DeriveHandleFromName builds the base username for an account: diacritics
// folded, lowercased, runs of whitespace collapsed to a single underscore,
// every other non [a-z0-9_] rune dropped, truncated to 20 runes. Deterministic
// for a given name.
func DeriveHandleFromName(name string) (string, error) {
	folded, _, err := transform.String(diacriticFolder, name)
	if err != nil {
		// the folding chain never fails on valid UTF-8; fall back to the raw name
		folded = name
	}
	handle := strings.ToLower(strings.TrimSpace(folded))
	handle = whitespaceRegex.ReplaceAllString(handle, "_")
	handle = handleCharRegex.ReplaceAllString(handle, "")
	if len(handle) > maxHandleLen {
		handle = handle[:maxHandleLen]
	}
	if handle == "" {
		return "", core.NewValidationError(
			errors.New("name yields an empty username"),
			core.FieldError{Field: "name", Error: "name contains no usable characters"},
		)
	}
	return handle, nil
}

// DeriveGuardianHandle builds a guardian username from the linked student's
// enrollment code and the guardian's homoclave, by plain concatenation. Both
// inputs are already format-validated, so the result needs no re-cleaning and
// is exempt from the 20-rune cap.
func DeriveGuardianHandle(enrollmentCode, homoclave string) string {
	return enrollmentCode + homoclave
}

// ResolveHandleConflict probes base, base_1, base_2, ... against taken until
// it finds a free variant. The suffix counts against no cap; the base was
// already truncated. Gives up after maxHandleAttempts numbered variants.
func ResolveHandleConflict(base string, taken func(handle string) (bool, error)) (string, error) {
	inUse, err := taken(base)
	if err != nil {
		return "", err
	}
	if !inUse {
		return base, nil
	}
	for i := 1; i <= maxHandleAttempts; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		inUse, err = taken(candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}
	return "", errors.Wrapf(ErrHandleExhausted, "base %q", base)
}
