// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrInvalidField возвращается, если поле лота не прошло проверку.
var ErrInvalidField = errors.New("invalid field")

const (
	minNumberLen = 10
	maxNumberLen = 11
	// MaxNumberLen ограничивает длину номера в хранилище.
	MaxNumberLen = 15
	// MaxIntegerDigits ограничивает целую часть денежных сумм.
	MaxIntegerDigits = 16

	moneyPlaces = 2
)

// NormalizeNumber удаляет пробелы, точки и дефисы из номера телефона.
func NormalizeNumber(number string) string {
	var b strings.Builder
	for _, ch := range number {
		switch ch {
		case ' ', '.', '-':
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// IsValidNumber проверяет номер: только цифры, начинается с 0, длина 10–11 символов.
func IsValidNumber(number string) bool {
	if len(number) < minNumberLen || len(number) > maxNumberLen {
		return false
	}
	if number[0] != '0' {
		return false
	}
	for _, ch := range number {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// ListingFields содержит редактируемые администратором поля лота.
type ListingFields struct {
	Number        string
	Network       string
	Category      string
	StartingPrice decimal.Decimal
	BuyNowPrice   decimal.NullDecimal
	BeautyScore   int
	Description   string
	StartTime     *time.Time
	EndTime       *time.Time
}

// ValidateListing проверяет поля лота и возвращает ошибку с описанием первого нарушения.
func ValidateListing(f ListingFields) error {
	if !IsValidNumber(f.Number) {
		return fmt.Errorf("%w: number %q", ErrInvalidField, f.Number)
	}
	if strings.TrimSpace(f.Network) == "" {
		return fmt.Errorf("%w: network is required", ErrInvalidField)
	}
	if strings.TrimSpace(f.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidField)
	}
	if err := checkMoney("starting price", f.StartingPrice); err != nil {
		return err
	}
	if !f.StartingPrice.IsPositive() {
		return fmt.Errorf("%w: starting price must be positive", ErrInvalidField)
	}
	if f.BuyNowPrice.Valid {
		if err := checkMoney("buy-now price", f.BuyNowPrice.Decimal); err != nil {
			return err
		}
		if !f.BuyNowPrice.Decimal.IsPositive() {
			return fmt.Errorf("%w: buy-now price must be positive", ErrInvalidField)
		}
		if !f.BuyNowPrice.Decimal.GreaterThan(f.StartingPrice) {
			return fmt.Errorf("%w: buy-now price must exceed starting price", ErrInvalidField)
		}
	}
	if f.BeautyScore < 1 || f.BeautyScore > 5 {
		return fmt.Errorf("%w: beauty score must be within 1..5", ErrInvalidField)
	}
	if (f.StartTime == nil) != (f.EndTime == nil) {
		return fmt.Errorf("%w: start and end time must be set together", ErrInvalidField)
	}
	if f.StartTime != nil && !f.EndTime.After(*f.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidField)
	}
	return nil
}

// ValidateAmount проверяет денежную сумму ставки или корректировки баланса.
func ValidateAmount(amount decimal.Decimal) error {
	return checkMoney("amount", amount)
}

// checkMoney проверяет, что сумма помещается в NUMERIC(18, 2): не больше
// MaxIntegerDigits цифр до запятой и не больше двух после.
// Разрядность проверяется до сравнения и округления: оба выравнивают
// экспоненты умножением коэффициента на 10^n.
func checkMoney(name string, d decimal.Decimal) error {
	exp := int(d.Exponent())
	if d.IsZero() {
		if exp > MaxIntegerDigits || exp < -MaxIntegerDigits {
			return fmt.Errorf("%w: %s has an out of range exponent", ErrInvalidField, name)
		}
		return nil
	}
	digits := len(new(big.Int).Abs(d.Coefficient()).String())
	if digits+exp > MaxIntegerDigits {
		return fmt.Errorf("%w: %s exceeds %d integer digits", ErrInvalidField, name, MaxIntegerDigits)
	}
	if exp < -moneyPlaces {
		// Коэффициент из digits цифр не делится на 10^k при k >= digits.
		if -moneyPlaces-exp >= digits || !d.Equal(d.Round(moneyPlaces)) {
			return fmt.Errorf("%w: %s has more than two decimal places", ErrInvalidField, name)
		}
	}
	return nil
}
