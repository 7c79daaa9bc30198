package cart

import (
	"errors"
	"fmt"
)

// Every public operation classifies its outcome with one of these sentinels.
// Callers branch with errors.Is; none of them is ever a panic or a hard fault
// for an expected condition.
var (
	// ErrNotFound means the requested item or cart does not exist, including
	// items that had already lazily expired.
	ErrNotFound = errors.New("cart: not found")

	// ErrEmptyCart means there was nothing to extend or pin. Distinct from a
	// backend fault so callers can tell "no-op" from "broken".
	ErrEmptyCart = errors.New("cart: cart is empty")

	// ErrInvalidArgument means the request was rejected before any backend
	// call: non-positive ids, quantity below one, days below one.
	ErrInvalidArgument = errors.New("cart: invalid argument")

	// ErrCorruptRecord means a stored record failed to decode. Read paths log
	// and skip such records rather than failing the whole operation.
	ErrCorruptRecord = errors.New("cart: corrupt record")

	// ErrBackend means Redis could not be reached or a call timed out.
	ErrBackend = errors.New("cart: backend unavailable")
)

func backendErr(err error) error {
	return fmt.Errorf("%w: %w", ErrBackend, err)
}
