package domain

// Motivos de rechazo, tal y como viajan en BookHoldFailed.
const (
	ReasonRestrictedBook      = "Regular patrons cannot hold restricted books"
	ReasonOverdueCheckouts    = "cannot place on hold when there are overdue checkouts"
	ReasonMaximumHolds        = "patron cannot hold more books"
	ReasonOpenEndedHold       = "regular patron cannot place open ended holds"
	ReasonBookNotHeldByPatron = "book is not on hold by patron"
)

// Rejection es el motivo por el que una política deniega la reserva.
type Rejection struct {
	Reason string
}

// PlacingOnHoldPolicy es un predicado puro: nil si permite la reserva.
type PlacingOnHoldPolicy func(book AvailableBook, patron Patron, duration HoldDuration) *Rejection

func rejectWith(reason string) *Rejection { return &Rejection{Reason: reason} }

func OnlyResearcherPatronsCanHoldRestrictedBooks(book AvailableBook, patron Patron, _ HoldDuration) *Rejection {
	if book.IsRestricted() && patron.IsRegular() {
		return rejectWith(ReasonRestrictedBook)
	}
	return nil
}

func OverdueCheckoutsRejection(book AvailableBook, patron Patron, _ HoldDuration) *Rejection {
	if patron.OverdueCheckoutsAt(book.Branch) >= MaxCountOfOverdueResources {
		return rejectWith(ReasonOverdueCheckouts)
	}
	return nil
}

func RegularPatronMaximumNumberOfHolds(_ AvailableBook, patron Patron, _ HoldDuration) *Rejection {
	if patron.IsRegular() && patron.NumberOfHolds() >= MaxNumberOfHolds {
		return rejectWith(ReasonMaximumHolds)
	}
	return nil
}

func OnlyResearcherPatronsCanPlaceOpenEndedHolds(_ AvailableBook, patron Patron, duration HoldDuration) *Rejection {
	if patron.IsRegular() && duration.IsOpenEnded() {
		return rejectWith(ReasonOpenEndedHold)
	}
	return nil
}

// AllCurrentPolicies devuelve las políticas en orden de evaluación; gana el primer rechazo.
func AllCurrentPolicies() []PlacingOnHoldPolicy {
	return []PlacingOnHoldPolicy{
		OnlyResearcherPatronsCanHoldRestrictedBooks,
		OverdueCheckoutsRejection,
		RegularPatronMaximumNumberOfHolds,
		OnlyResearcherPatronsCanPlaceOpenEndedHolds,
	}
}
