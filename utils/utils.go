package utils

import (
	"strconv"
)

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// LocalPart returns the part of an email address before the @ sign.
func LocalPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
