package utility

import (
	"strings"

	"github.com/google/uuid"
)

func NewUUID() string {
	return uuid.New().String()
}

// MaskCardNumber keeps the last four digits, for log lines only
func MaskCardNumber(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) <= 4 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
