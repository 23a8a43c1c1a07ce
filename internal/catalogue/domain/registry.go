package domain

import (
	"reflect"

	sharedEvents "github.com/davicafu/lendinglab/internal/shared/domain/events"
)

func NewEventRegistry() sharedEvents.Registry {
	return sharedEvents.Registry{
		EventBookInstanceAddedToCatalogue: {Type: reflect.TypeOf(BookInstanceAddedToCatalogue{}), Topic: CatalogueTopic},
	}
}
