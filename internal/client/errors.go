package client

import "errors"

// ErrNotInitialized indica que se invocó una operación que requiere el
// motor construido antes de (o sin) un Init() exitoso. Siempre viene
// envuelto con el nombre de la operación ofensora.
var ErrNotInitialized = errors.New("public client application not initialized; call Init() first")

// IsNotInitialized verifica si el error es ErrNotInitialized.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrNotInitialized)
}
