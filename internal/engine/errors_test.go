package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError_PreservaCodigoEnMensaje(t *testing.T) {
	casos := []struct {
		err  *EngineError
		code string
	}{
		// El vendor embebe el código en el mensaje
		{&EngineError{Message: "AADB2C90118: The user has forgotten their password."}, "AADB2C90118"},
		// O llega en el campo Code y Error() lo tiene que exponer igual
		{&EngineError{Code: "AADB2C90080", Message: "The provided grant has expired."}, "AADB2C90080"},
	}
	for _, c := range casos {
		if !ContainsVendorCode(c.err, c.code) {
			t.Fatalf("esperado código %s en %q", c.code, c.err.Error())
		}
	}
}

func TestContainsVendorCode(t *testing.T) {
	err := &EngineError{Code: "AADB2C90118", Message: "password change requested"}

	t.Run("código presente", func(t *testing.T) {
		if !ContainsVendorCode(err, "AADB2C90118") {
			t.Fatal("esperado true con el código presente")
		}
	})

	t.Run("código ausente", func(t *testing.T) {
		if ContainsVendorCode(err, "AADB2C90080") {
			t.Fatal("esperado false con otro código")
		}
	})

	t.Run("también matchea errores envueltos", func(t *testing.T) {
		wrapped := fmt.Errorf("acquire token: %w", err)
		if !ContainsVendorCode(wrapped, "AADB2C90118") {
			t.Fatal("esperado true con el error envuelto")
		}
	})

	t.Run("nil y código vacío", func(t *testing.T) {
		if ContainsVendorCode(nil, "AADB2C90118") {
			t.Fatal("esperado false con err nil")
		}
		if ContainsVendorCode(err, "") {
			t.Fatal("esperado false con código vacío")
		}
	})
}

func TestHelpers_Is(t *testing.T) {
	if !IsUserCancelled(fmt.Errorf("op: %w", ErrUserCancelled)) {
		t.Fatal("IsUserCancelled debe atravesar wrapping")
	}
	if !IsNotFound(fmt.Errorf("op: %w", ErrAccountNotFound)) {
		t.Fatal("IsNotFound debe atravesar wrapping")
	}
	if IsNotFound(errors.New("otra cosa")) {
		t.Fatal("IsNotFound no debe matchear errores ajenos")
	}
}
