// Package b2c implementa el orquestador de policies sobre el facade.
//
// Un Client maneja el flujo multi-authority de B2C: la policy de
// sign-up-or-sign-in como authority por defecto, una policy opcional de
// password reset como authority secundaria, y la recuperación de
// credenciales vencidas. Es el único componente con control de flujo no
// trivial: branching por códigos de error del vendor, sub-flujos
// secuenciales (reset de password -> re-autenticación) y serialización
// de sesiones interactivas concurrentes donde la plataforma lo exige.
package b2c

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/msalbridge/internal/client"
	"github.com/dropDatabas3/msalbridge/internal/domain/types"
	"github.com/dropDatabas3/msalbridge/internal/engine"
	"github.com/dropDatabas3/msalbridge/internal/observability/logger"
	"github.com/dropDatabas3/msalbridge/internal/observability/metrics"
)

// Códigos de error del vendor. Llegan embebidos en el mensaje del error
// del motor; el matcheo es por substring vía engine.ContainsVendorCode.
const (
	// codePasswordChange: el usuario pidió "Forgot Password" y hay que
	// correr la policy de reset.
	codePasswordChange = "AADB2C90118"

	// codeExpiredGrant: la credencial de refresh expiró; hay que
	// re-autenticar interactivamente.
	codeExpiredGrant = "AADB2C90080"
)

// resetFlowDelay serializa el lanzamiento de la segunda superficie
// interactiva en plataformas que no admiten dos sesiones a la vez y no
// muestran prompt previo. Es un workaround de UI, no un contrato de
// timing.
const resetFlowDelay = time.Second

// Policies mapea nombres lógicos de policy a su segmento de path.
// SignInSignUp es obligatoria; PasswordReset es opcional.
type Policies struct {
	SignInSignUp  string
	PasswordReset string
}

// Config configuración del orquestador.
type Config struct {
	ClientID string

	// AuthorityBase es la authority común sin policy. Forma:
	// https://TENANT.b2clogin.com/tfp/TENANT.onmicrosoft.com
	AuthorityBase string

	Policies    Policies
	RedirectURI string

	// Engine configuración del motor subyacente (driver, store, TTLs).
	Engine engine.Config

	// Factory construye el motor; nil => engine.New.
	Factory engine.Factory
}

// SignInParams son los parámetros de SignIn (la authority la decide el
// orquestador, no el caller).
type SignInParams struct {
	Scopes               []string
	PromptType           types.PromptType
	LoginHint            string
	ExtraQueryParameters map[string]string
	ExtraScopesToConsent []string
	WebviewParameters    *types.WebviewParameters
}

// SilentParams son los parámetros de AcquireTokenSilent.
type SilentParams struct {
	Scopes       []string
	ForceRefresh bool
}

// SignOutParams son los parámetros de SignOut.
type SignOutParams struct {
	SignoutFromBrowser bool
	WebviewParameters  *types.WebviewParameters
}

// Client es el orquestador de policies B2C.
type Client struct {
	cfg Config
	pca *client.PublicClientApplication
	log *zap.Logger
}

// New crea el orquestador. Deriva una authority por policy (base + "/" +
// segmento): la de sign-in-sign-up queda como authority por defecto del
// facade y el conjunto completo como allow-list de known authorities —
// una authority fuera de ese conjunto no puede ser target de ninguna
// llamada.
func New(cfg Config) (*Client, error) {
	if cfg.Policies.SignInSignUp == "" {
		return nil, ErrMissingSignInPolicy
	}
	authority := authorityFor(cfg.AuthorityBase, cfg.Policies.SignInSignUp)
	known := []string{authority}
	if cfg.Policies.PasswordReset != "" {
		known = append(known, authorityFor(cfg.AuthorityBase, cfg.Policies.PasswordReset))
	}
	pca := client.New(client.Config{
		ClientID:         cfg.ClientID,
		Authority:        authority,
		RedirectURI:      cfg.RedirectURI,
		KnownAuthorities: known,
		Engine:           cfg.Engine,
		Factory:          cfg.Factory,
	})
	return &Client{
		cfg: cfg,
		pca: pca,
		log: logger.Named("msal.b2c"),
	}, nil
}

// Init inicializa el facade (y con él, el motor subyacente).
func (c *Client) Init(ctx context.Context) error {
	return c.pca.Init(ctx)
}

// Close libera el facade.
func (c *Client) Close() error { return c.pca.Close() }

// DefaultAuthority retorna la authority de sign-in-sign-up.
func (c *Client) DefaultAuthority() string {
	return authorityFor(c.cfg.AuthorityBase, c.cfg.Policies.SignInSignUp)
}

// KnownAuthorities retorna la allow-list derivada de las policies.
func (c *Client) KnownAuthorities() []string {
	known := []string{c.DefaultAuthority()}
	if c.cfg.Policies.PasswordReset != "" {
		known = append(known, authorityFor(c.cfg.AuthorityBase, c.cfg.Policies.PasswordReset))
	}
	return known
}

// SignIn inicia un sign-in interactivo contra la policy de
// sign-in-sign-up. Si el usuario toca "Forgot Password" y hay una policy
// de reset configurada, corre el sub-flujo de reset y re-autentica.
// Falla con ErrAlreadySignedIn si ya hay una cuenta de sign-in-sign-up:
// el caller debe hacer SignOut primero.
func (c *Client) SignIn(ctx context.Context, params SignInParams) (*types.Result, error) {
	signedIn, err := c.IsSignedIn(ctx)
	if err != nil {
		return nil, err
	}
	if signedIn {
		return nil, ErrAlreadySignedIn
	}

	// Sin authority explícita: el facade usa la default (sign-in-sign-up)
	res, err := c.pca.AcquireToken(ctx, interactiveParams(params, ""))
	if err != nil {
		if engine.ContainsVendorCode(err, codePasswordChange) && c.cfg.Policies.PasswordReset != "" {
			c.log.Info("password change requerido, iniciando flujo de reset")
			return c.resetPassword(ctx, params)
		}
		return nil, err
	}
	return res, nil
}

// AcquireTokenSilent adquiere un token silenciosamente para la cuenta de
// sign-in-sign-up. Si la credencial de refresh expiró (grant expirado),
// purga la cuenta y re-corre el flujo interactivo completo.
func (c *Client) AcquireTokenSilent(ctx context.Context, params SilentParams) (*types.Result, error) {
	account, ok, err := c.accountForPolicy(ctx, c.cfg.Policies.SignInSignUp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoExistingAccount
	}

	// La cuenta matchea la authority de sign-in-sign-up, que es la
	// default del facade: no hace falta pasarla explícitamente.
	res, err := c.pca.AcquireTokenSilent(ctx, types.SilentParams{
		Scopes:       params.Scopes,
		Account:      account,
		ForceRefresh: params.ForceRefresh,
	})
	if err != nil {
		if engine.ContainsVendorCode(err, codeExpiredGrant) {
			metrics.RecoveryFlows.WithLabelValues("expired_grant").Inc()
			c.log.Info("grant expirado, purgando cuenta y re-autenticando",
				zap.String("account", account.Identifier))
			if _, serr := c.pca.SignOut(ctx, types.SignoutParams{Account: account}); serr != nil {
				return nil, serr
			}
			return c.SignIn(ctx, SignInParams{Scopes: params.Scopes})
		}
		return nil, err
	}
	return res, nil
}

// Accounts retorna todas las cuentas cacheadas (todas las policies).
func (c *Client) Accounts(ctx context.Context) ([]types.Account, error) {
	return c.pca.GetAccounts(ctx)
}

// IsSignedIn retorna true si existe una cuenta de sign-in-sign-up.
func (c *Client) IsSignedIn(ctx context.Context) (bool, error) {
	_, ok, err := c.accountForPolicy(ctx, c.cfg.Policies.SignInSignUp)
	return ok, err
}

// SignOut enumera todas las cuentas cacheadas (de todas las policies,
// no solo sign-in-sign-up) y las remueve. Los sign-outs salen en
// paralelo y la llamada falla si cualquiera falla; no hay señalización
// de éxito parcial.
func (c *Client) SignOut(ctx context.Context, params SignOutParams) (bool, error) {
	accounts, err := c.pca.GetAccounts(ctx)
	if err != nil {
		return false, err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			_, err := c.pca.SignOut(gctx, types.SignoutParams{
				Account:            account,
				SignoutFromBrowser: params.SignoutFromBrowser,
				WebviewParameters:  params.WebviewParameters,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return true, nil
}

// resetPassword corre la policy de password reset y, con el reset
// confirmado, re-corre SignIn. El resultado del reset se descarta: solo
// prueba que el reset terminó bien, no sirve como token de sesión.
func (c *Client) resetPassword(ctx context.Context, params SignInParams) (*types.Result, error) {
	if c.cfg.Policies.PasswordReset == "" {
		// Defensivo: SignIn ya chequeó la policy antes de llegar acá
		return nil, ErrMissingPasswordResetPolicy
	}
	metrics.RecoveryFlows.WithLabelValues("password_reset").Inc()

	// Durante un reset forzado el usuario no tiene sesión del identity
	// provider, así que no se reusa sesión de browser persistente.
	override := params
	wv := types.WebviewParameters{PrefersEphemeralSession: true}
	if params.WebviewParameters != nil {
		wv = *params.WebviewParameters
		wv.PrefersEphemeralSession = true
	}
	override.WebviewParameters = &wv

	// En plataformas de sesión interactiva única sin prompt previo, dos
	// lanzamientos de UI seguidos se pisan ("session already active").
	if c.pca.Capabilities().SingleInteractiveSession {
		select {
		case <-time.After(resetFlowDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	authority := authorityFor(c.cfg.AuthorityBase, c.cfg.Policies.PasswordReset)
	if _, err := c.pca.AcquireToken(ctx, interactiveParams(override, authority)); err != nil {
		return nil, err
	}

	// Con el password ya reseteado, autenticar de nuevo contra la policy
	// de sign-in-sign-up
	return c.SignIn(ctx, params)
}

// accountForPolicy busca entre todas las cuentas cacheadas la que
// pertenece a la policy dada. El motor embebe el nombre de la policy en
// el identifier, así que el matcheo es por substring case-insensitive.
// Es una heurística observada del vendor, no un contrato documentado.
func (c *Client) accountForPolicy(ctx context.Context, policy string) (types.Account, bool, error) {
	accounts, err := c.pca.GetAccounts(ctx)
	if err != nil {
		return types.Account{}, false, err
	}
	needle := strings.ToLower(policy)
	for _, account := range accounts {
		if strings.Contains(strings.ToLower(account.Identifier), needle) {
			return account, true, nil
		}
	}
	return types.Account{}, false, nil
}

func interactiveParams(p SignInParams, authority string) types.InteractiveParams {
	return types.InteractiveParams{
		Scopes:               p.Scopes,
		Authority:            authority,
		PromptType:           p.PromptType,
		LoginHint:            p.LoginHint,
		ExtraQueryParameters: p.ExtraQueryParameters,
		ExtraScopesToConsent: p.ExtraScopesToConsent,
		WebviewParameters:    p.WebviewParameters,
	}
}

func authorityFor(base, policy string) string {
	return strings.TrimRight(base, "/") + "/" + policy
}
