package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/msalbridge/internal/domain/types"
	"github.com/dropDatabas3/msalbridge/internal/engine"
)

// fakeEngine es un doble scripteable del motor subyacente.
type fakeEngine struct {
	caps engine.Capabilities

	mu         sync.Mutex
	accounts   map[string]engine.Account
	calls      []string
	lastPrompt types.PromptType

	acquireErr error
	silentErr  error
	removeErr  error
	endErr     error
}

func newFakeEngine(caps engine.Capabilities) *fakeEngine {
	return &fakeEngine{caps: caps, accounts: map[string]engine.Account{}}
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) AcquireToken(ctx context.Context, p types.InteractiveParams) (*engine.Result, error) {
	f.record("acquireToken:" + p.Authority)
	f.mu.Lock()
	f.lastPrompt = p.PromptType
	f.mu.Unlock()
	if f.acquireErr != nil {
		err := f.acquireErr
		f.acquireErr = nil
		return nil, err
	}
	acct := engine.Account{
		HomeAccountID: "uid-b2c_1_signin.utid",
		Environment:   "login.example.com",
		TenantID:      "utid",
		Username:      "ana@example.com",
	}
	f.mu.Lock()
	f.accounts[acct.HomeAccountID] = acct
	f.mu.Unlock()
	return &engine.Result{
		AccessToken: "at",
		ExpiresOn:   time.Now().Add(time.Hour).Unix(),
		Scopes:      p.Scopes,
		TenantID:    "utid",
		Account:     acct,
	}, nil
}

func (f *fakeEngine) AcquireTokenSilent(ctx context.Context, scopes []string, account engine.Account, authority string, force bool) (*engine.Result, error) {
	f.record("acquireTokenSilent:" + account.HomeAccountID + ":" + account.Environment)
	if f.silentErr != nil {
		return nil, f.silentErr
	}
	return &engine.Result{
		AccessToken: "at2",
		ExpiresOn:   time.Now().Add(time.Hour).Unix(),
		Scopes:      scopes,
		Account:     account,
	}, nil
}

func (f *fakeEngine) Accounts(ctx context.Context) ([]engine.Account, error) {
	f.record("accounts")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]engine.Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeEngine) AccountByHomeID(ctx context.Context, homeID string) (engine.Account, error) {
	f.record("accountByHomeID:" + homeID)
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[homeID]
	if !ok {
		return engine.Account{}, engine.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeEngine) RemoveAccount(ctx context.Context, account engine.Account) error {
	f.record("removeAccount:" + account.HomeAccountID)
	if f.removeErr != nil {
		return f.removeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[account.HomeAccountID]; !ok {
		return engine.ErrAccountNotFound
	}
	delete(f.accounts, account.HomeAccountID)
	return nil
}

func (f *fakeEngine) EndBrowserSession(ctx context.Context, account engine.Account, wv *types.WebviewParameters) error {
	f.record("endBrowserSession:" + account.HomeAccountID)
	return f.endErr
}

func (f *fakeEngine) Capabilities() engine.Capabilities { return f.caps }

func (f *fakeEngine) Close() error { return nil }

func newTestClient(t *testing.T, fe *fakeEngine) *PublicClientApplication {
	t.Helper()
	p := New(Config{
		ClientID:  "client-1",
		Authority: "https://login.example.com/tfp/t/b2c_1_signin",
		Factory: func(engine.Config) (engine.Engine, error) {
			return fe, nil
		},
	})
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestInit_ConcurrenteConstruyeUnaVez(t *testing.T) {
	var constructed int32
	fe := newFakeEngine(engine.Capabilities{})
	p := New(Config{
		ClientID: "client-1",
		Factory: func(engine.Config) (engine.Engine, error) {
			atomic.AddInt32(&constructed, 1)
			time.Sleep(20 * time.Millisecond) // dejar que el segundo Init llegue en vuelo
			return fe, nil
		},
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.Init(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("init %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&constructed); n != 1 {
		t.Fatalf("el motor se construyó %d veces", n)
	}
	if p.State() != Ready {
		t.Fatalf("estado: %v", p.State())
	}

	// Idempotente una vez Ready
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&constructed); n != 1 {
		t.Fatalf("re-init construyó de nuevo: %d", n)
	}
}

func TestInit_FallaYReintento(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	fe := newFakeEngine(engine.Capabilities{})
	p := New(Config{
		ClientID: "client-1",
		Factory: func(engine.Config) (engine.Engine, error) {
			attempts++
			if attempts == 1 {
				return nil, boom
			}
			return fe, nil
		},
	})

	if err := p.Init(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("esperado boom, obtuvo %v", err)
	}
	if p.State() != Uninitialized {
		t.Fatalf("tras fallar debe volver a Uninitialized, estado: %v", p.State())
	}
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.State() != Ready {
		t.Fatalf("estado: %v", p.State())
	}
}

func TestOperacionesSinInit(t *testing.T) {
	p := New(Config{ClientID: "client-1"})
	ctx := context.Background()

	casos := []struct {
		op  string
		err error
	}{
		{"acquireToken", func() error { _, err := p.AcquireToken(ctx, types.InteractiveParams{}); return err }()},
		{"acquireTokenSilent", func() error { _, err := p.AcquireTokenSilent(ctx, types.SilentParams{}); return err }()},
		{"getAccounts", func() error { _, err := p.GetAccounts(ctx); return err }()},
		{"getAccount", func() error { _, err := p.GetAccount(ctx, "x"); return err }()},
		{"removeAccount", func() error { _, err := p.RemoveAccount(ctx, types.Account{}); return err }()},
		{"signOut", func() error { _, err := p.SignOut(ctx, types.SignoutParams{}); return err }()},
	}
	for _, c := range casos {
		if !IsNotInitialized(c.err) {
			t.Fatalf("%s: esperado ErrNotInitialized, obtuvo %v", c.op, c.err)
		}
		// El error nombra la operación ofensora
		if !strings.Contains(c.err.Error(), c.op) {
			t.Fatalf("%s: el error no nombra la operación: %q", c.op, c.err.Error())
		}
	}
}

func TestRemoveAccount_Idempotente(t *testing.T) {
	fe := newFakeEngine(engine.Capabilities{})
	p := newTestClient(t, fe)
	ctx := context.Background()

	res, err := p.AcquireToken(ctx, types.InteractiveParams{Scopes: []string{"openid"}})
	if err != nil {
		t.Fatal(err)
	}

	ok, err := p.RemoveAccount(ctx, res.Account)
	if err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	// La cuenta ya no existe: el facade lo trata como no-op exitoso
	ok, err = p.RemoveAccount(ctx, res.Account)
	if err != nil || !ok {
		t.Fatalf("remove repetido: ok=%v err=%v", ok, err)
	}
}

func TestIdentifier_ClaveCompuesta(t *testing.T) {
	fe := newFakeEngine(engine.Capabilities{CompositeAccountKey: true})
	p := newTestClient(t, fe)
	ctx := context.Background()

	res, err := p.AcquireToken(ctx, types.InteractiveParams{Scopes: []string{"openid"}})
	if err != nil {
		t.Fatal(err)
	}
	// El facade deriva un identifier único a partir de la clave compuesta
	want := "uid-b2c_1_signin.utid@login.example.com"
	if res.Account.Identifier != want {
		t.Fatalf("identifier: %q, esperado %q", res.Account.Identifier, want)
	}

	// Y lo descompone al volver a entrar al motor
	if _, err := p.AcquireTokenSilent(ctx, types.SilentParams{
		Scopes:  []string{"openid"},
		Account: res.Account,
	}); err != nil {
		t.Fatal(err)
	}
	log := fe.callLog()
	last := log[len(log)-1]
	if last != "acquireTokenSilent:uid-b2c_1_signin.utid:login.example.com" {
		t.Fatalf("el motor no recibió la clave compuesta reconstruida: %q", last)
	}

	t.Run("getAccount resuelve el identifier compuesto", func(t *testing.T) {
		got, err := p.GetAccount(ctx, res.Account.Identifier)
		if err != nil {
			t.Fatal(err)
		}
		if got.Identifier != res.Account.Identifier {
			t.Fatalf("identifier: %q vs %q", got.Identifier, res.Account.Identifier)
		}
	})
}

func TestIdentifier_ClaveSimple(t *testing.T) {
	fe := newFakeEngine(engine.Capabilities{})
	p := newTestClient(t, fe)

	res, err := p.AcquireToken(context.Background(), types.InteractiveParams{Scopes: []string{"openid"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Account.Identifier != "uid-b2c_1_signin.utid" {
		t.Fatalf("identifier: %q", res.Account.Identifier)
	}
}

func TestSignOut_SesionDeBrowser(t *testing.T) {
	t.Run("con capacidad y pedido explícito termina la sesión", func(t *testing.T) {
		fe := newFakeEngine(engine.Capabilities{BrowserSession: true})
		p := newTestClient(t, fe)
		ctx := context.Background()

		res, err := p.AcquireToken(ctx, types.InteractiveParams{Scopes: []string{"openid"}})
		if err != nil {
			t.Fatal(err)
		}
		ok, err := p.SignOut(ctx, types.SignoutParams{Account: res.Account, SignoutFromBrowser: true})
		if err != nil || !ok {
			t.Fatalf("signOut: ok=%v err=%v", ok, err)
		}

		log := fe.callLog()
		var sawEnd, sawRemove bool
		for _, c := range log {
			if strings.HasPrefix(c, "endBrowserSession:") {
				sawEnd = true
				if sawRemove {
					t.Fatal("endBrowserSession debe preceder a removeAccount")
				}
			}
			if strings.HasPrefix(c, "removeAccount:") {
				sawRemove = true
			}
		}
		if !sawEnd || !sawRemove {
			t.Fatalf("llamadas: %v", log)
		}
	})

	t.Run("sin capacidad equivale a removeAccount", func(t *testing.T) {
		fe := newFakeEngine(engine.Capabilities{})
		p := newTestClient(t, fe)
		ctx := context.Background()

		res, err := p.AcquireToken(ctx, types.InteractiveParams{Scopes: []string{"openid"}})
		if err != nil {
			t.Fatal(err)
		}
		ok, err := p.SignOut(ctx, types.SignoutParams{Account: res.Account, SignoutFromBrowser: true})
		if err != nil || !ok {
			t.Fatalf("signOut: ok=%v err=%v", ok, err)
		}
		for _, c := range fe.callLog() {
			if strings.HasPrefix(c, "endBrowserSession:") {
				t.Fatal("no debía tocar la sesión de browser")
			}
		}
	})
}

func TestAcquireToken_PromptPorDefecto(t *testing.T) {
	fe := newFakeEngine(engine.Capabilities{})
	p := newTestClient(t, fe)

	// El caller no setea PromptType: el motor tiene que recibir "solo
	// cuando haga falta", no el selector de cuentas
	if _, err := p.AcquireToken(context.Background(), types.InteractiveParams{Scopes: []string{"openid"}}); err != nil {
		t.Fatal(err)
	}
	if fe.lastPrompt != types.PromptWhenRequired {
		t.Fatalf("prompt recibido: %v", fe.lastPrompt)
	}
	if types.PromptDefault != types.PromptWhenRequired {
		t.Fatalf("default: %v", types.PromptDefault)
	}

	// Un prompt explícito pasa sin cambios
	if _, err := p.AcquireToken(context.Background(), types.InteractiveParams{
		Scopes:     []string{"openid"},
		PromptType: types.PromptLogin,
	}); err != nil {
		t.Fatal(err)
	}
	if fe.lastPrompt != types.PromptLogin {
		t.Fatalf("prompt recibido: %v", fe.lastPrompt)
	}
}

func TestAcquireToken_CancelacionPropagaSinReintento(t *testing.T) {
	fe := newFakeEngine(engine.Capabilities{})
	p := newTestClient(t, fe)

	fe.acquireErr = engine.ErrUserCancelled
	_, err := p.AcquireToken(context.Background(), types.InteractiveParams{Scopes: []string{"openid"}})
	if !engine.IsUserCancelled(err) {
		t.Fatalf("esperado cancelación, obtuvo %v", err)
	}
	// Exactamente una llamada interactiva: sin retry automático
	var n int
	for _, c := range fe.callLog() {
		if strings.HasPrefix(c, "acquireToken:") {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("llamadas interactivas: %d", n)
	}
}
