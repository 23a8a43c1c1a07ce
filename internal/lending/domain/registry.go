package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/lendinglab/internal/shared/domain/events"
)

const LendingTopic = "lending"

func NewEventRegistry() sharedEvents.Registry {
	return sharedEvents.Registry{
		EventPatronCreated:               {Type: reflect.TypeOf(PatronCreated{}), Topic: LendingTopic},
		EventBookPlacedOnHold:            {Type: reflect.TypeOf(BookPlacedOnHold{}), Topic: LendingTopic},
		EventMaximumNumberOfHoldsReached: {Type: reflect.TypeOf(MaximumNumberOfHoldsReached{}), Topic: LendingTopic},
		EventBookHoldFailed:              {Type: reflect.TypeOf(BookHoldFailed{}), Topic: LendingTopic},
		EventBookHoldCanceled:            {Type: reflect.TypeOf(BookHoldCanceled{}), Topic: LendingTopic},
		EventBookHoldCancelingFailed:     {Type: reflect.TypeOf(BookHoldCancelingFailed{}), Topic: LendingTopic},
		EventBookHoldExpired:             {Type: reflect.TypeOf(BookHoldExpired{}), Topic: LendingTopic},
		EventBookCheckedOut:              {Type: reflect.TypeOf(BookCheckedOut{}), Topic: LendingTopic},
		EventBookCheckingOutFailed:       {Type: reflect.TypeOf(BookCheckingOutFailed{}), Topic: LendingTopic},
		EventBookReturned:                {Type: reflect.TypeOf(BookReturned{}), Topic: LendingTopic},
		EventOverdueCheckoutRegistered:   {Type: reflect.TypeOf(OverdueCheckoutRegistered{}), Topic: LendingTopic},
		EventBookDuplicateHoldFound:      {Type: reflect.TypeOf(BookDuplicateHoldFound{}), Topic: LendingTopic},
	}
}
