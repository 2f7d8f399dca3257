// Package idgen generates document ids and formats ticket display ids.
package idgen

import (
	"fmt"
	"strconv"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each stored entity.
const (
	PrefixTicket       = "tk-"
	PrefixProject      = "pr-"
	PrefixTeam         = "tm-"
	PrefixSprint       = "sp-"
	PrefixRelease      = "rl-"
	PrefixTag          = "tg-"
	PrefixComment      = "cm-"
	PrefixNotification = "nt-"
	PrefixUser         = "us-"
)

// DefaultPrefix is used by Generate.
var DefaultPrefix = PrefixTicket

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generate returns a new ticket id.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// DisplayID formats the human-facing ticket id, e.g. "TICKET-42".
func DisplayID(key string, n int) string {
	return key + "-" + strconv.Itoa(n)
}

// ParseDisplayID splits "KEY-n" into its key and sequence number. Keys may
// themselves contain dashes; the number is everything after the last one.
func ParseDisplayID(s string) (string, int, bool) {
	i := strings.LastIndexByte(s, '-')
	if i <= 0 || i == len(s)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return s[:i], n, true
}
