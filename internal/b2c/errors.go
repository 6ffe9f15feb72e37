package b2c

import "errors"

// Errores del orquestador.
var (
	// ErrMissingSignInPolicy indica que la config no trae la policy de
	// sign-in-sign-up (obligatoria).
	ErrMissingSignInPolicy = errors.New("b2c: sign in sign up policy is required")

	// ErrAlreadySignedIn indica que se llamó SignIn con una cuenta de
	// sign-in-sign-up ya existente. Hacer SignOut primero.
	ErrAlreadySignedIn = errors.New("b2c: a user is already signed in")

	// ErrNoExistingAccount indica que no se encontró cuenta de
	// sign-in-sign-up cuando se requería una.
	ErrNoExistingAccount = errors.New("b2c: could not find existing account for sign in sign up policy")

	// ErrMissingPasswordResetPolicy indica que el flujo de reset se
	// alcanzó sin policy de password reset configurada.
	ErrMissingPasswordResetPolicy = errors.New("b2c: missing password reset policy")
)
