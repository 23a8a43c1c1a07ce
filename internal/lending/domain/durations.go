package domain

import (
	"errors"
	"fmt"
	"time"
)

// MaxCheckoutDurationDays limita la duración de un préstamo.
const MaxCheckoutDurationDays = 60

var (
	ErrInvalidHoldDuration     = errors.New("hold duration must be at least one day")
	ErrInvalidCheckoutDuration = fmt.Errorf("checkout duration must be between 1 and %d days", MaxCheckoutDurationDays)
)

// HoldDuration es abierta (sin fecha de fin) o cerrada a un número de días.
type HoldDuration struct {
	from time.Time
	days int // 0 = abierta
}

// OpenEndedHold crea una reserva sin fecha de expiración.
func OpenEndedHold(from time.Time) HoldDuration {
	return HoldDuration{from: from}
}

// CloseEndedHold crea una reserva de days días a partir de from.
func CloseEndedHold(from time.Time, days int) (HoldDuration, error) {
	if days <= 0 {
		return HoldDuration{}, ErrInvalidHoldDuration
	}
	return HoldDuration{from: from, days: days}, nil
}

func (d HoldDuration) From() time.Time { return d.from }

func (d HoldDuration) IsOpenEnded() bool { return d.days == 0 }

// Till devuelve nil para reservas abiertas.
func (d HoldDuration) Till() *time.Time {
	if d.IsOpenEnded() {
		return nil
	}
	till := d.from.AddDate(0, 0, d.days)
	return &till
}

// CheckoutDuration es el periodo de un préstamo.
type CheckoutDuration struct {
	from time.Time
	days int
}

func NewCheckoutDuration(from time.Time, days int) (CheckoutDuration, error) {
	if days <= 0 || days > MaxCheckoutDurationDays {
		return CheckoutDuration{}, ErrInvalidCheckoutDuration
	}
	return CheckoutDuration{from: from, days: days}, nil
}

func (d CheckoutDuration) From() time.Time { return d.from }

func (d CheckoutDuration) Till() time.Time { return d.from.AddDate(0, 0, d.days) }
