package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func PgUUIDFromString(id string) (pgtype.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, err
	}

	var pgUUID pgtype.UUID
	copy(pgUUID.Bytes[:], u[:])
	pgUUID.Valid = true

	return pgUUID, nil
}

func PgUUIDToString(id pgtype.UUID) (string, error) {
	if !id.Valid {
		return "", errors.New("id inválido")
	}

	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return "", err
	}

	return u.String(), nil
}

// MustPgUUIDToString returns an empty string for invalid ids.
func MustPgUUIDToString(id pgtype.UUID) string {
	s, _ := PgUUIDToString(id)
	return s
}

func NewPgUUID() pgtype.UUID {
	u := uuid.New()
	return pgtype.UUID{Bytes: u, Valid: true}
}

func PgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func PgInt8(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: true}
}

// MaxCents caps every money value the API accepts (R$ 10 bilhões).
const MaxCents int64 = 1_000_000_000_000

var ErrAmountTooLarge = errors.New("valor acima do limite")

// CentsFromString parses prices written as "1299.90", "1.299,90", "R$ 1.299,90"
// or "$1,299.90" into integer cents. The last separator followed by exactly
// one or two digits is treated as the decimal mark.
func CentsFromString(raw string) (int64, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0, errors.New("preço vazio")
	}

	decimalIdx := -1
	if i := strings.LastIndexAny(s, ".,"); i >= 0 {
		if frac := len(s) - i - 1; frac == 1 || frac == 2 {
			decimalIdx = i
		}
	}

	intPart := s
	fracPart := ""
	if decimalIdx >= 0 {
		intPart = s[:decimalIdx]
		fracPart = s[decimalIdx+1:]
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, ErrAmountTooLarge
	}
	if err != nil {
		return 0, err
	}
	if whole > MaxCents/100 {
		return 0, ErrAmountTooLarge
	}
	frac, err := strconv.ParseInt(fracPart, 10, 64)
	if err != nil {
		return 0, err
	}
	cents := whole*100 + frac
	if cents > MaxCents {
		return 0, ErrAmountTooLarge
	}
	return cents, nil
}

// FormatCents renders cents for emails and reports. BRL uses the Brazilian
// separators, everything else uses dot decimals with the currency code.
func FormatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	thousands, decimal := ",", "."
	prefix := strings.ToUpper(currency) + " "
	switch strings.ToUpper(currency) {
	case "", "BRL":
		thousands, decimal = ".", ","
		prefix = "R$ "
	case "USD":
		prefix = "$"
	}

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteString(thousands)
		}
		grouped.WriteRune(r)
	}

	return sign + prefix + grouped.String() + decimal + fmt.Sprintf("%02d", frac)
}
