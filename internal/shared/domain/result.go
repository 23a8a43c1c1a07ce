package domain

// Result contiene exactamente uno de: un fallo de negocio (F) o un éxito (S).
type Result[F any, S any] struct {
	failure F
	success S
	ok      bool
}

func Succeeded[F any, S any](s S) Result[F, S] {
	return Result[F, S]{success: s, ok: true}
}

func Failed[F any, S any](f F) Result[F, S] {
	return Result[F, S]{failure: f}
}

func (r Result[F, S]) IsSuccess() bool { return r.ok }

func (r Result[F, S]) Success() (S, bool) { return r.success, r.ok }

func (r Result[F, S]) Failure() (F, bool) { return r.failure, !r.ok }
