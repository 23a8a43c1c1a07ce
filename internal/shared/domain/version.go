package domain

import "errors"

// ErrConcurrencyConflict se devuelve cuando la versión guardada no coincide con la del agregado.
// El comando puede reintentarse desde una carga nueva.
var ErrConcurrencyConflict = errors.New("concurrency conflict: aggregate version mismatch")

// Version es el contador de bloqueo optimista de un agregado.
type Version int

func (v Version) Next() Version { return v + 1 }
