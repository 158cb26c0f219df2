/**
 * @description
 * Pure validation helpers, kept free of persistence calls so they can be unit
 * tested without a database.
 */

package app

import (
	"regexp"

	"github.com/securebank/ledger-service/internal/domain"
)

// Cameroonian mobile numbers: international form or the bare local form.
var (
	phoneWithPrefix    = regexp.MustCompile(`^\+2376[0-9]{8}$`)
	phoneWithoutPrefix = regexp.MustCompile(`^6[0-9]{8}$`)
)

// ValidPhoneNumber reports whether a phone number matches the regional pattern.
func ValidPhoneNumber(phone string) bool {
	return phoneWithPrefix.MatchString(phone) || phoneWithoutPrefix.MatchString(phone)
}

// ValidAccountType reports whether the account type is a known product.
func ValidAccountType(accountType string) bool {
	for _, t := range domain.AccountTypes {
		if t == accountType {
			return true
		}
	}
	return false
}
