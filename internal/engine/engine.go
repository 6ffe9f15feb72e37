// Package engine define la frontera hacia el motor de autenticación
// subyacente (SDK nativo o SDK de browser) y provee la variante
// in-process para desarrollo y testing.
//
// El motor es una caja negra correcta: emite tokens, cachea cuentas y
// credenciales, y presenta UI interactiva. Este paquete no reimplementa
// OAuth2/OIDC; define el contrato que el facade consume.
//
// Variantes:
//   - Memory (in-process, determinística, para desarrollo/testing)
//   - Los motores nativos (Android/iOS/browser) se enchufan desde afuera
//     implementando Engine; se seleccionan al construir, no en runtime.
package engine

import (
	"context"
	"time"

	"github.com/dropDatabas3/msalbridge/internal/domain/types"
	"github.com/dropDatabas3/msalbridge/internal/store"
)

// Account es la forma nativa de una cuenta dentro del motor. El facade
// es el único que traduce entre esta forma y types.Account; ni el
// orquestador ni los callers ven campos específicos del backend.
type Account struct {
	// HomeAccountID es la clave del motor para la cuenta. En algunos
	// backends es compuesta junto con Environment.
	HomeAccountID string
	Environment   string
	TenantID      string
	Username      string
	Claims        types.Claims
}

// Result es la forma nativa de una adquisición exitosa.
type Result struct {
	AccessToken string
	ExpiresOn   int64
	IDToken     string
	Scopes      []string
	TenantID    string
	Account     Account
}

// Capabilities declara diferencias de plataforma que el facade y el
// orquestador necesitan conocer. Se fijan al construir el motor.
type Capabilities struct {
	// BrowserSession indica que el motor mantiene una sesión en el system
	// browser que puede terminarse explícitamente (end-session endpoint).
	BrowserSession bool

	// SingleInteractiveSession indica que la plataforma solo admite una
	// sesión interactiva a la vez y no muestra prompt previo, por lo que
	// dos lanzamientos seguidos de UI pueden pisarse.
	SingleInteractiveSession bool

	// CompositeAccountKey indica que el motor identifica cuentas por el
	// par (HomeAccountID, Environment) y no por HomeAccountID solo.
	CompositeAccountKey bool
}

// Engine es el conjunto de operaciones que el facade consume del motor
// subyacente. Todas pueden suspender en red o UI; respetan el context.
type Engine interface {
	// AcquireToken adquiere un token interactivamente. Puede presentar
	// UI; el usuario puede cancelarla (ErrUserCancelled).
	AcquireToken(ctx context.Context, p types.InteractiveParams) (*Result, error)

	// AcquireTokenSilent adquiere un token con la credencial cacheada,
	// sin UI. Retorna *EngineError (típicamente interaction required) si
	// la credencial no alcanza.
	AcquireTokenSilent(ctx context.Context, scopes []string, account Account, authority string, forceRefresh bool) (*Result, error)

	// Accounts retorna todas las cuentas cacheadas para esta aplicación,
	// en orden definido por el motor. Sin cuentas => slice vacío, no error.
	Accounts(ctx context.Context) ([]Account, error)

	// AccountByHomeID busca una cuenta por su HomeAccountID exacto.
	// Retorna ErrAccountNotFound si no existe.
	AccountByHomeID(ctx context.Context, homeAccountID string) (Account, error)

	// RemoveAccount purga las credenciales cacheadas de la cuenta.
	// Retorna ErrAccountNotFound si no existe (el facade lo trata como no-op).
	RemoveAccount(ctx context.Context, account Account) error

	// EndBrowserSession termina la sesión del system browser para la
	// cuenta. Solo tiene sentido si Capabilities().BrowserSession.
	EndBrowserSession(ctx context.Context, account Account, wv *types.WebviewParameters) error

	// Capabilities retorna las capacidades de la plataforma.
	Capabilities() Capabilities

	// Close libera recursos del motor.
	Close() error
}

// Config configuración para construir un motor.
type Config struct {
	// Driver: "memory" (default). Los motores nativos se registran vía
	// Factory en el cliente, no acá.
	Driver string

	ClientID    string
	Authority   string // authority por defecto
	RedirectURI string

	// KnownAuthorities es la allow-list de authorities. Una authority no
	// declarada acá falla en cualquier llamada que la use.
	KnownAuthorities []string

	// TokenTTL vida de los access tokens emitidos por el motor memory.
	// 0 => 1 hora.
	TokenTTL time.Duration

	// RefreshTTL vida de la credencial de refresh del motor memory.
	// 0 => 24 horas.
	RefreshTTL time.Duration

	// Store configuración del store de credenciales del motor memory.
	Store store.Config
}

// Factory construye un Engine a partir de una Config. Permite inyectar
// motores nativos o dobles de test en el cliente.
type Factory func(cfg Config) (Engine, error)

// New construye un motor según la configuración.
func New(cfg Config) (Engine, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemory(cfg)
	default:
		return nil, &EngineError{Message: "driver de motor no soportado: " + cfg.Driver}
	}
}
