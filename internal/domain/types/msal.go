// Package types define el modelo de datos compartido del bridge.
//
// Todos los motores subyacentes (nativo o browser) se normalizan a estas
// formas: una cuenta es una Account, un token adquirido es un Result.
// Los tipos son snapshots inmutables: un Result nuevo reemplaza (no
// actualiza) al anterior.
package types

// PromptType controla cuándo el motor muestra UI interactiva.
type PromptType int

const (
	// PromptWhenRequired solo muestra UI si la sesión no alcanza (SSO
	// silencioso si hay cookies). Es el zero value a propósito: unos
	// InteractiveParams sin PromptType seteado ya piden el comportamiento
	// por defecto.
	PromptWhenRequired PromptType = iota
	// PromptSelectAccount fuerza el selector de cuentas.
	PromptSelectAccount
	// PromptLogin fuerza re-ingreso de credenciales.
	PromptLogin
	// PromptConsent fuerza la pantalla de consentimiento.
	PromptConsent

	// PromptDefault es el comportamiento por defecto.
	PromptDefault = PromptWhenRequired
)

// String retorna el nombre del prompt para logs.
func (p PromptType) String() string {
	switch p {
	case PromptSelectAccount:
		return "select_account"
	case PromptLogin:
		return "login"
	case PromptConsent:
		return "consent"
	case PromptWhenRequired:
		return "when_required"
	default:
		return "unknown"
	}
}

// Claims es un mapa abierto de claims del id token (valores string,
// números, mapas anidados o arrays). Snapshot al momento de emisión;
// no se refresca in place.
type Claims map[string]any

// Account representa una identidad autenticada cacheada por el motor
// subyacente para esta aplicación.
type Account struct {
	// Identifier es un string opaco y estable que identifica la tupla
	// (usuario, tenant, environment). Es la clave de matcheo exacto para
	// GetAccount y AcquireTokenSilent. Dos sign-ins interactivos del mismo
	// usuario bajo la misma policy producen el mismo Identifier.
	Identifier string

	// Environment es el host de la authority que emitió la cuenta.
	// Puede estar vacío según el motor.
	Environment string

	// TenantID es el directorio al que pertenece la cuenta.
	TenantID string

	// Username es el nombre legible (ej: email). No es clave estable.
	Username string

	// Claims del id token al momento de emisión. Opcional.
	Claims Claims
}

// Result representa una adquisición de token exitosa.
// Se crea fresco en cada llamada exitosa (interactiva o silenciosa) y
// nunca se muta.
type Result struct {
	// AccessToken es la credencial bearer.
	AccessToken string

	// ExpiresOn es el instante de expiración (epoch, segundos).
	ExpiresOn int64

	// IDToken crudo. Opcional.
	IDToken string

	// Scopes otorgados. El orden no tiene semántica pero se preserva.
	Scopes []string

	// TenantID emisor; puede diferir del tenant home de la cuenta.
	TenantID string

	// Account para la que se emitió este resultado.
	Account Account
}

// WebviewParameters ajusta la superficie interactiva en plataformas que
// la soportan.
type WebviewParameters struct {
	// PrefersEphemeralSession pide una sesión de browser privada/efímera
	// (sin cookies persistentes). Usado por el flujo de password reset.
	PrefersEphemeralSession bool
}

// InteractiveParams son los parámetros de una adquisición interactiva.
type InteractiveParams struct {
	Scopes               []string
	Authority            string // vacío => authority por defecto del cliente
	PromptType           PromptType
	LoginHint            string
	ExtraQueryParameters map[string]string
	ExtraScopesToConsent []string
	WebviewParameters    *WebviewParameters
}

// SilentParams son los parámetros de una adquisición silenciosa.
// Account debe haber sido obtenida previamente del mismo cliente.
type SilentParams struct {
	Scopes       []string
	Account      Account
	Authority    string // vacío => authority por defecto del cliente
	ForceRefresh bool
}

// SignoutParams son los parámetros de un sign-out.
type SignoutParams struct {
	Account Account

	// SignoutFromBrowser además termina la sesión del system browser en
	// plataformas que mantienen una. En el resto equivale a RemoveAccount.
	SignoutFromBrowser bool

	WebviewParameters *WebviewParameters
}
