package engine

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/msalbridge/internal/domain/types"
	"github.com/dropDatabas3/msalbridge/internal/store"
)

const (
	accountKeyPrefix = "account:"

	defaultTokenTTL   = time.Hour
	defaultRefreshTTL = 24 * time.Hour
	defaultUsername   = "user@example.com"
)

// memoryEngine implementa Engine in-process. Emite tokens HS256 firmados
// con una clave efímera por instancia y persiste cuentas en un
// store.Client. La identidad es determinística: el mismo usuario bajo la
// misma policy produce siempre el mismo HomeAccountID, con el nombre de
// la policy embebido en minúsculas (misma forma que observa el
// orquestador en los backends reales).
type memoryEngine struct {
	cfg     Config
	store   store.Client
	signKey []byte

	mu           sync.Mutex
	nextIntErr   error // falla inyectada para la próxima llamada interactiva
	nextSilErr   error // falla inyectada para la próxima llamada silenciosa
	interactives int
	silents      int
}

// storedAccount es el registro serializado en el store.
type storedAccount struct {
	HomeAccountID string       `json:"home_account_id"`
	Environment   string       `json:"environment"`
	TenantID      string       `json:"tenant_id"`
	Username      string       `json:"username"`
	Claims        types.Claims `json:"claims,omitempty"`
}

// NewMemory crea el motor in-process.
func NewMemory(cfg Config) (*memoryEngine, error) {
	if cfg.ClientID == "" {
		return nil, &EngineError{Message: "client id requerido"}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return &memoryEngine{cfg: cfg, store: st, signKey: key}, nil
}

func (e *memoryEngine) Capabilities() Capabilities {
	// In-process: sin system browser y sin restricción de UI serial.
	return Capabilities{}
}

// resolveAuthority aplica el default y valida contra la allow-list.
// Una authority no declarada en KnownAuthorities falla, igual que en los
// motores reales.
func (e *memoryEngine) resolveAuthority(authority string) (string, error) {
	if authority == "" {
		authority = e.cfg.Authority
	}
	if authority == "" {
		return "", &EngineError{Message: "no default authority configured"}
	}
	if authority == e.cfg.Authority {
		return authority, nil
	}
	for _, known := range e.cfg.KnownAuthorities {
		if authority == known {
			return authority, nil
		}
	}
	return "", &EngineError{Message: fmt.Sprintf("authority %q is not in the known authorities list", authority)}
}

// policySegment extrae el último segmento del path de la authority, en
// minúsculas. En B2C ese segmento es el nombre de la policy.
func policySegment(authority string) string {
	trimmed := strings.TrimRight(authority, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return strings.ToLower(trimmed)
	}
	return strings.ToLower(trimmed[i+1:])
}

func environmentOf(authority string) string {
	u, err := url.Parse(authority)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// identityFor deriva la identidad determinística de un usuario bajo una
// authority. uid y utid son UUIDv5 (estables entre sign-ins). El home
// account id lleva el nombre de la policy embebido en minúsculas, la
// misma forma que producen los backends reales.
func (e *memoryEngine) identityFor(username, authority string) (homeAccountID, uid, tenantID string) {
	policy := policySegment(authority)
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte("msalbridge:user:"+strings.ToLower(username)))
	utid := uuid.NewSHA1(uuid.NameSpaceURL, []byte("msalbridge:tenant:"+environmentOf(authority)))
	return fmt.Sprintf("%s-%s.%s", u, policy, utid), u.String(), utid.String()
}

func (e *memoryEngine) AcquireToken(ctx context.Context, p types.InteractiveParams) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.interactives++
	injected := e.nextIntErr
	e.nextIntErr = nil
	e.mu.Unlock()
	if injected != nil {
		return nil, injected
	}

	authority, err := e.resolveAuthority(p.Authority)
	if err != nil {
		return nil, err
	}

	username := p.LoginHint
	if username == "" {
		username = defaultUsername
	}

	homeID, uid, tenantID := e.identityFor(username, authority)
	policy := policySegment(authority)
	now := time.Now()
	exp := now.Add(e.cfg.TokenTTL)

	claims := types.Claims{
		"iss":                authority,
		"sub":                uid,
		"aud":                e.cfg.ClientID,
		"tfp":                policy,
		"iat":                now.Unix(),
		"exp":                exp.Unix(),
		"preferred_username": username,
	}
	idToken, err := e.mint(claims)
	if err != nil {
		return nil, err
	}
	accessToken, err := e.mint(types.Claims{
		"iss": authority,
		"sub": uid,
		"aud": e.cfg.ClientID,
		"scp": strings.Join(p.Scopes, " "),
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	if err != nil {
		return nil, err
	}

	acct := storedAccount{
		HomeAccountID: homeID,
		Environment:   environmentOf(authority),
		TenantID:      tenantID,
		Username:      username,
		Claims:        claims,
	}
	raw, err := json.Marshal(acct)
	if err != nil {
		return nil, err
	}
	if err := e.store.Set(ctx, accountKeyPrefix+homeID, string(raw), e.cfg.RefreshTTL); err != nil {
		return nil, err
	}

	return &Result{
		AccessToken: accessToken,
		ExpiresOn:   exp.Unix(),
		IDToken:     idToken,
		Scopes:      append([]string(nil), p.Scopes...),
		TenantID:    tenantID,
		Account:     acct.toAccount(),
	}, nil
}

func (e *memoryEngine) AcquireTokenSilent(ctx context.Context, scopes []string, account Account, authority string, forceRefresh bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.silents++
	injected := e.nextSilErr
	e.nextSilErr = nil
	e.mu.Unlock()
	if injected != nil {
		return nil, injected
	}

	authority, err := e.resolveAuthority(authority)
	if err != nil {
		return nil, err
	}

	raw, err := e.store.Get(ctx, accountKeyPrefix+account.HomeAccountID)
	if err != nil {
		if store.IsNotFound(err) {
			// Sin credencial de refresh vigente: se necesita interacción.
			return nil, &EngineError{Code: "interaction_required", Message: "no cached refresh credential for account; interaction_required"}
		}
		return nil, err
	}
	var acct storedAccount
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		return nil, err
	}

	now := time.Now()
	exp := now.Add(e.cfg.TokenTTL)
	accessToken, err := e.mint(types.Claims{
		"iss": authority,
		"sub": acct.HomeAccountID,
		"aud": e.cfg.ClientID,
		"scp": strings.Join(scopes, " "),
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	if err != nil {
		return nil, err
	}

	// Renovar la vigencia del refresh en cada uso exitoso
	if err := e.store.Set(ctx, accountKeyPrefix+acct.HomeAccountID, raw, e.cfg.RefreshTTL); err != nil {
		return nil, err
	}

	return &Result{
		AccessToken: accessToken,
		ExpiresOn:   exp.Unix(),
		Scopes:      append([]string(nil), scopes...),
		TenantID:    acct.TenantID,
		Account:     acct.toAccount(),
	}, nil
}

func (e *memoryEngine) Accounts(ctx context.Context) ([]Account, error) {
	keys, err := e.store.Keys(ctx, accountKeyPrefix)
	if err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(keys))
	for _, k := range keys {
		raw, err := e.store.Get(ctx, k)
		if err != nil {
			if store.IsNotFound(err) {
				continue // expiró entre el scan y el get
			}
			return nil, err
		}
		var acct storedAccount
		if err := json.Unmarshal([]byte(raw), &acct); err != nil {
			return nil, err
		}
		accounts = append(accounts, acct.toAccount())
	}
	return accounts, nil
}

func (e *memoryEngine) AccountByHomeID(ctx context.Context, homeAccountID string) (Account, error) {
	raw, err := e.store.Get(ctx, accountKeyPrefix+homeAccountID)
	if err != nil {
		if store.IsNotFound(err) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	var acct storedAccount
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		return Account{}, err
	}
	return acct.toAccount(), nil
}

func (e *memoryEngine) RemoveAccount(ctx context.Context, account Account) error {
	_, err := e.store.Get(ctx, accountKeyPrefix+account.HomeAccountID)
	if err != nil {
		if store.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}
	return e.store.Delete(ctx, accountKeyPrefix+account.HomeAccountID)
}

func (e *memoryEngine) EndBrowserSession(ctx context.Context, account Account, wv *types.WebviewParameters) error {
	// Sin system browser in-process: no hay sesión que terminar.
	return nil
}

func (e *memoryEngine) Close() error {
	return e.store.Close()
}

func (e *memoryEngine) mint(claims types.Claims) (string, error) {
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims(claims))
	return tok.SignedString(e.signKey)
}

func (a storedAccount) toAccount() Account {
	return Account{
		HomeAccountID: a.HomeAccountID,
		Environment:   a.Environment,
		TenantID:      a.TenantID,
		Username:      a.Username,
		Claims:        a.Claims,
	}
}

// --- Helpers de inyección de fallas (solo para desarrollo/tests) ---

// FailNextInteractive hace fallar la próxima llamada interactiva con un
// EngineError que lleva el código de vendor dado.
func (e *memoryEngine) FailNextInteractive(code, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextIntErr = &EngineError{Code: code, Message: message}
}

// FailNextSilent hace fallar la próxima llamada silenciosa.
func (e *memoryEngine) FailNextSilent(code, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSilErr = &EngineError{Code: code, Message: message}
}

// CancelNextInteractive simula que el usuario cierra la UI.
func (e *memoryEngine) CancelNextInteractive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextIntErr = ErrUserCancelled
}

// InteractiveCalls retorna cuántas llamadas interactivas se hicieron.
func (e *memoryEngine) InteractiveCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interactives
}

// SilentCalls retorna cuántas llamadas silenciosas se hicieron.
func (e *memoryEngine) SilentCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.silents
}
