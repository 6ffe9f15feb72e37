// Package client implementa el facade unificado sobre el motor de
// autenticación subyacente.
//
// Un PublicClientApplication envuelve exactamente un motor detrás de una
// interfaz estable (Init, AcquireToken, AcquireTokenSilent, GetAccounts,
// GetAccount, RemoveAccount, SignOut) y normaliza las tres formas de
// cuenta/resultado de los backends a un único modelo de datos. El estado
// de inicialización es por instancia (sin singletons de proceso), así
// pueden coexistir varios clientes configurados de forma independiente.
package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/msalbridge/internal/domain/types"
	"github.com/dropDatabas3/msalbridge/internal/engine"
	"github.com/dropDatabas3/msalbridge/internal/observability/logger"
	"github.com/dropDatabas3/msalbridge/internal/observability/metrics"
)

// State es el estado de inicialización del cliente.
type State int

const (
	// Uninitialized: el motor todavía no se construyó.
	Uninitialized State = iota
	// Initializing: hay una construcción del motor en vuelo.
	Initializing
	// Ready: el motor está construido y operativo.
	Ready
)

// Config configuración inmutable del cliente. Cambiarla requiere
// construir un cliente nuevo.
type Config struct {
	ClientID    string
	Authority   string // authority por defecto
	RedirectURI string

	// KnownAuthorities es la allow-list completa de authorities que este
	// cliente va a usar. Debe declararse entera por adelantado.
	KnownAuthorities []string

	// Engine configuración del motor subyacente.
	Engine engine.Config

	// Factory construye el motor. Nil => engine.New. Permite enchufar
	// motores nativos o dobles de test.
	Factory engine.Factory
}

// PublicClientApplication es el facade unificado. Las operaciones fallan
// con ErrNotInitialized hasta que Init() complete; no hay auto-init (la
// decisión es consistente en todas las operaciones).
type PublicClientApplication struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	state   State
	ready   chan struct{} // se cierra cuando el Init en vuelo termina
	initErr error
	eng     engine.Engine
}

// New crea un cliente sin inicializar. Llamar Init() antes de operar.
func New(cfg Config) *PublicClientApplication {
	// La config top-level manda sobre la del motor
	cfg.Engine.ClientID = cfg.ClientID
	cfg.Engine.Authority = cfg.Authority
	cfg.Engine.RedirectURI = cfg.RedirectURI
	cfg.Engine.KnownAuthorities = append([]string(nil), cfg.KnownAuthorities...)
	return &PublicClientApplication{
		cfg: cfg,
		log: logger.Named("msal.client"),
	}
}

// State retorna el estado actual de inicialización.
func (p *PublicClientApplication) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Init construye el motor subyacente. Es idempotente: si ya está Ready
// es un no-op; si hay un Init en vuelo, espera su resultado. Nunca
// construye el motor dos veces.
func (p *PublicClientApplication) Init(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case Ready:
		p.mu.Unlock()
		return nil
	case Initializing:
		ch := p.ready
		p.mu.Unlock()
		select {
		case <-ch:
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.initErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.state = Initializing
	p.ready = make(chan struct{})
	ch := p.ready
	p.mu.Unlock()

	factory := p.cfg.Factory
	if factory == nil {
		factory = engine.New
	}
	eng, err := factory(p.cfg.Engine)

	p.mu.Lock()
	if err != nil {
		p.state = Uninitialized
		p.initErr = err
		p.log.Warn("init del motor falló", zap.Error(err))
	} else {
		p.eng = eng
		p.state = Ready
		p.initErr = nil
		p.log.Debug("motor inicializado",
			zap.String("client_id", p.cfg.ClientID),
			zap.String("authority", p.cfg.Authority))
	}
	close(ch)
	p.mu.Unlock()
	return err
}

// engineFor retorna el motor listo, o ErrNotInitialized nombrando la
// operación ofensora.
func (p *PublicClientApplication) engineFor(op string) (engine.Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Ready {
		return nil, fmt.Errorf("%s: %w", op, ErrNotInitialized)
	}
	return p.eng, nil
}

// Capabilities retorna las capacidades del motor. Zero value si el
// cliente no está inicializado.
func (p *PublicClientApplication) Capabilities() engine.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Ready {
		return engine.Capabilities{}
	}
	return p.eng.Capabilities()
}

// AcquireToken adquiere un token interactivamente. Puede presentar una
// superficie de login (system browser, webview o popup según el motor);
// el usuario puede cancelarla (engine.ErrUserCancelled). Authority vacía
// usa la authority por defecto del cliente.
func (p *PublicClientApplication) AcquireToken(ctx context.Context, params types.InteractiveParams) (*types.Result, error) {
	eng, err := p.engineFor("acquireToken")
	if err != nil {
		return nil, err
	}
	res, err := eng.AcquireToken(ctx, params)
	if err != nil {
		if engine.IsUserCancelled(err) {
			metrics.TokenAcquisitions.WithLabelValues("interactive", "cancelled").Inc()
		} else {
			metrics.TokenAcquisitions.WithLabelValues("interactive", "error").Inc()
		}
		return nil, err
	}
	metrics.TokenAcquisitions.WithLabelValues("interactive", "ok").Inc()
	out := p.toPublicResult(eng, res)
	p.log.Debug("token interactivo adquirido",
		zap.String("account", out.Account.Identifier),
		zap.Strings("scopes", out.Scopes))
	return out, nil
}

// AcquireTokenSilent adquiere un token con la credencial cacheada, sin
// UI. La cuenta debe haber sido obtenida de este cliente. No hay
// fallback a interactivo acá: esa política es del orquestador.
func (p *PublicClientApplication) AcquireTokenSilent(ctx context.Context, params types.SilentParams) (*types.Result, error) {
	eng, err := p.engineFor("acquireTokenSilent")
	if err != nil {
		return nil, err
	}
	native := p.toNativeAccount(eng, params.Account)
	res, err := eng.AcquireTokenSilent(ctx, params.Scopes, native, params.Authority, params.ForceRefresh)
	if err != nil {
		metrics.TokenAcquisitions.WithLabelValues("silent", "error").Inc()
		return nil, err
	}
	metrics.TokenAcquisitions.WithLabelValues("silent", "ok").Inc()
	return p.toPublicResult(eng, res), nil
}

// GetAccounts retorna todas las cuentas cacheadas por el motor para esta
// aplicación, en orden definido por el motor. Sin cuentas => slice
// vacío, no error.
func (p *PublicClientApplication) GetAccounts(ctx context.Context) ([]types.Account, error) {
	eng, err := p.engineFor("getAccounts")
	if err != nil {
		return nil, err
	}
	native, err := eng.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]types.Account, 0, len(native))
	for _, a := range native {
		accounts = append(accounts, p.toPublicAccount(eng, a))
	}
	return accounts, nil
}

// GetAccount busca la cuenta cuyo Identifier matchea exactamente.
// Retorna engine.ErrAccountNotFound si no existe.
func (p *PublicClientApplication) GetAccount(ctx context.Context, identifier string) (types.Account, error) {
	eng, err := p.engineFor("getAccount")
	if err != nil {
		return types.Account{}, err
	}
	homeID, _ := splitIdentifier(eng.Capabilities(), identifier)
	a, err := eng.AccountByHomeID(ctx, homeID)
	if err != nil {
		return types.Account{}, err
	}
	return p.toPublicAccount(eng, a), nil
}

// RemoveAccount purga las credenciales cacheadas de la cuenta. Es
// idempotente: remover una cuenta ausente es un no-op exitoso.
func (p *PublicClientApplication) RemoveAccount(ctx context.Context, account types.Account) (bool, error) {
	eng, err := p.engineFor("removeAccount")
	if err != nil {
		return false, err
	}
	native := p.toNativeAccount(eng, account)
	if err := eng.RemoveAccount(ctx, native); err != nil {
		if engine.IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// SignOut remueve la cuenta y, si el motor mantiene sesión de system
// browser y el caller lo pidió, también la termina (round trip al
// end-session endpoint). En motores sin esa sesión equivale a
// RemoveAccount.
func (p *PublicClientApplication) SignOut(ctx context.Context, params types.SignoutParams) (bool, error) {
	eng, err := p.engineFor("signOut")
	if err != nil {
		return false, err
	}
	native := p.toNativeAccount(eng, params.Account)
	if params.SignoutFromBrowser && eng.Capabilities().BrowserSession {
		if err := eng.EndBrowserSession(ctx, native, params.WebviewParameters); err != nil {
			metrics.SignOuts.WithLabelValues("error").Inc()
			return false, err
		}
	}
	if err := eng.RemoveAccount(ctx, native); err != nil && !engine.IsNotFound(err) {
		metrics.SignOuts.WithLabelValues("error").Inc()
		return false, err
	}
	metrics.SignOuts.WithLabelValues("ok").Inc()
	p.log.Debug("cuenta removida", zap.String("account", params.Account.Identifier))
	return true, nil
}

// Close libera el motor subyacente.
func (p *PublicClientApplication) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Ready {
		return nil
	}
	p.state = Uninitialized
	eng := p.eng
	p.eng = nil
	return eng.Close()
}
