package engine

import (
	"errors"
	"strings"
)

// Errores del motor.
var (
	// ErrUserCancelled indica que el usuario cerró la superficie
	// interactiva. Es un resultado terminal esperado: nunca se reintenta.
	ErrUserCancelled = errors.New("user cancelled the authentication flow")

	// ErrAccountNotFound indica que ninguna cuenta cacheada matchea el
	// identificador pedido.
	ErrAccountNotFound = errors.New("account not found")
)

// EngineError envuelve una falla estructurada del motor subyacente.
// Code es el código corto del vendor (ej: "AADB2C90118"); Message es el
// texto legible. El vendor embebe el código como substring del mensaje,
// y Error() preserva ese contrato porque la lógica de branching del
// orquestador depende de él (ver ContainsVendorCode).
type EngineError struct {
	Code    string
	Message string
}

func (e *EngineError) Error() string {
	if e.Code == "" {
		return "engine: " + e.Message
	}
	if strings.Contains(e.Message, e.Code) {
		return "engine: " + e.Message
	}
	return "engine: " + e.Code + ": " + e.Message
}

// IsUserCancelled verifica si el error es una cancelación del usuario.
func IsUserCancelled(err error) bool {
	return errors.Is(err, ErrUserCancelled)
}

// IsNotFound verifica si el error es ErrAccountNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// ContainsVendorCode verifica si el error lleva el código de vendor dado.
//
// El contrato es frágil a propósito: el vendor no expone un campo
// estructurado, solo embebe el código en el mensaje, así que el matcheo
// es por substring. Está aislado en este helper (y testeado) para no
// duplicar la fragilidad por todo el orquestador.
func ContainsVendorCode(err error, code string) bool {
	if err == nil || code == "" {
		return false
	}
	return strings.Contains(err.Error(), code)
}
