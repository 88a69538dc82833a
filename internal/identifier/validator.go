// Package identifier validates and normalizes the identifiers an account can
// be reached at: email addresses, phone numbers, and usernames.
package identifier

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Kind distinguishes the two contact channels.
type Kind string

const (
	KindEmail Kind = "EMAIL"
	KindPhone Kind = "PHONE"
)

// Reason explains why validation failed. OK means the value is acceptable.
type Reason string

const (
	ReasonOK               Reason = "OK"
	ReasonInvalidSyntax    Reason = "INVALID_SYNTAX"
	ReasonDisposable       Reason = "DISPOSABLE"
	ReasonInvalidTLD       Reason = "INVALID_TLD"
	ReasonMissingRegion    Reason = "MISSING_REGION"
	ReasonInvalidForRegion Reason = "INVALID_FOR_REGION"
	ReasonRestricted       Reason = "RESTRICTED"
)

// Result is the outcome of a validation: whether the value passed, the reason
// when it did not, and the normalized form when it did (lowercase email,
// E.164 phone).
type Result struct {
	Valid      bool
	Reason     Reason
	Normalized string
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ok(normalized string) Result {
	return Result{Valid: true, Reason: ReasonOK, Normalized: normalized}
}

func fail(reason Reason) Result {
	return Result{Valid: false, Reason: reason}
}

// Validate checks value as the given kind. region (ISO 3166-1 alpha-2) is
// required for phone numbers and ignored for emails.
func Validate(kind Kind, value, region string) Result {
	switch kind {
	case KindEmail:
		return ValidateEmail(value)
	case KindPhone:
		return ValidatePhone(value, region)
	default:
		return fail(ReasonInvalidSyntax)
	}
}

// ValidateEmail checks syntax, TLD plausibility, and the disposable-domain list.
// The normalized form is the lowercased address.
func ValidateEmail(value string) Result {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || !emailPattern.MatchString(value) {
		return fail(ReasonInvalidSyntax)
	}
	at := strings.LastIndex(value, "@")
	domain := value[at+1:]
	dot := strings.LastIndex(domain, ".")
	tld := domain[dot+1:]
	if !validTLDs[tld] {
		return fail(ReasonInvalidTLD)
	}
	if disposableDomains[domain] {
		return fail(ReasonDisposable)
	}
	return ok(value)
}

// ValidatePhone checks value against the numbering plan of region. A phone
// without a region code is always rejected, regardless of the number's own
// validity.
func ValidatePhone(value, region string) Result {
	value = strings.TrimSpace(value)
	region = strings.ToUpper(strings.TrimSpace(region))
	if value == "" || region == "" {
		return fail(ReasonMissingRegion)
	}
	num, err := phonenumbers.Parse(value, region)
	if err != nil {
		return fail(ReasonInvalidSyntax)
	}
	if !phonenumbers.IsValidNumberForRegion(num, region) {
		return fail(ReasonInvalidForRegion)
	}
	return ok(phonenumbers.Format(num, phonenumbers.E164))
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

// ValidateUsername checks handle syntax and the restricted-word list. The
// normalized form is lowercase.
func ValidateUsername(value string) Result {
	value = strings.ToLower(strings.TrimSpace(value))
	if !usernamePattern.MatchString(value) {
		return fail(ReasonInvalidSyntax)
	}
	for _, word := range restrictedWords {
		if strings.Contains(value, word) {
			return fail(ReasonRestricted)
		}
	}
	return ok(value)
}

// NormalizeEmail lowercases and trims an email without validating it.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NormalizePhone returns the E.164 form of value for region, or the trimmed
// input when it cannot be parsed. Lookup paths use this so a malformed number
// simply fails to match anything rather than erroring.
func NormalizePhone(value, region string) string {
	value = strings.TrimSpace(value)
	if region == "" {
		// Already-E.164 values parse without a region hint.
		if strings.HasPrefix(value, "+") {
			if num, err := phonenumbers.Parse(value, ""); err == nil {
				return phonenumbers.Format(num, phonenumbers.E164)
			}
		}
		return value
	}
	num, err := phonenumbers.Parse(value, strings.ToUpper(region))
	if err != nil {
		return value
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
