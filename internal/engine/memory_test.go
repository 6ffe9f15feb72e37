package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/dropDatabas3/msalbridge/internal/domain/types"
)

const (
	testAuthority = "https://tenant.b2clogin.com/tfp/tenant.onmicrosoft.com/b2c_1_signin"
	testResetAuth = "https://tenant.b2clogin.com/tfp/tenant.onmicrosoft.com/b2c_1_reset"
)

func newTestEngine(t *testing.T) *memoryEngine {
	t.Helper()
	e, err := NewMemory(Config{
		ClientID:         "client-1",
		Authority:        testAuthority,
		KnownAuthorities: []string{testAuthority, testResetAuth},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestMemory_SinCuentasAlInicio(t *testing.T) {
	e := newTestEngine(t)
	accounts, err := e.Accounts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 0 {
		t.Fatalf("motor fresco: esperado 0 cuentas, obtuvo %d", len(accounts))
	}
}

func TestMemory_InteractivoYSilencioso(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.AcquireToken(ctx, types.InteractiveParams{
		Scopes:    []string{"openid", "offline_access"},
		LoginHint: "ana@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.AccessToken == "" || res.IDToken == "" {
		t.Fatal("tokens vacíos")
	}
	if got := res.Scopes; len(got) != 2 || got[0] != "openid" || got[1] != "offline_access" {
		t.Fatalf("scopes no preservados: %v", got)
	}
	if res.Account.Username != "ana@example.com" {
		t.Fatalf("username: %q", res.Account.Username)
	}

	// El identifier embebe el nombre de la policy en minúsculas (el
	// orquestador depende de esto)
	if !strings.Contains(res.Account.HomeAccountID, "b2c_1_signin") {
		t.Fatalf("home account id sin policy: %q", res.Account.HomeAccountID)
	}

	t.Run("el identifier es usable inmediatamente en silent", func(t *testing.T) {
		silent, err := e.AcquireTokenSilent(ctx, []string{"openid"}, res.Account, "", false)
		if err != nil {
			t.Fatal(err)
		}
		if silent.Account.HomeAccountID != res.Account.HomeAccountID {
			t.Fatalf("identifier inestable: %q vs %q",
				silent.Account.HomeAccountID, res.Account.HomeAccountID)
		}
	})

	t.Run("dos sign-ins del mismo usuario dan el mismo identifier", func(t *testing.T) {
		res2, err := e.AcquireToken(ctx, types.InteractiveParams{
			Scopes:    []string{"openid"},
			LoginHint: "ana@example.com",
		})
		if err != nil {
			t.Fatal(err)
		}
		if res2.Account.HomeAccountID != res.Account.HomeAccountID {
			t.Fatalf("identifier no determinístico: %q vs %q",
				res2.Account.HomeAccountID, res.Account.HomeAccountID)
		}
	})

	t.Run("lookup exacto por home account id", func(t *testing.T) {
		got, err := e.AccountByHomeID(ctx, res.Account.HomeAccountID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Username != "ana@example.com" {
			t.Fatalf("username: %q", got.Username)
		}
		if _, err := e.AccountByHomeID(ctx, "no-existe"); !IsNotFound(err) {
			t.Fatalf("esperado ErrAccountNotFound, obtuvo %v", err)
		}
	})
}

func TestMemory_CuentasDistintasPorPolicy(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	signin, err := e.AcquireToken(ctx, types.InteractiveParams{
		Scopes:    []string{"openid"},
		LoginHint: "ana@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	reset, err := e.AcquireToken(ctx, types.InteractiveParams{
		Scopes:    []string{"openid"},
		LoginHint: "ana@example.com",
		Authority: testResetAuth,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Mismo usuario, policies distintas => cuentas lógicamente distintas
	if signin.Account.HomeAccountID == reset.Account.HomeAccountID {
		t.Fatal("cada policy debe producir su propia cuenta")
	}
	accounts, err := e.Accounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("esperado 2 cuentas, obtuvo %d", len(accounts))
	}
}

func TestMemory_AuthorityNoDeclarada(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AcquireToken(context.Background(), types.InteractiveParams{
		Scopes:    []string{"openid"},
		Authority: "https://otra.example/tfp/x/b2c_1_otro",
	})
	if err == nil {
		t.Fatal("authority fuera de la allow-list debe fallar")
	}
}

func TestMemory_RemoveAccount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.AcquireToken(ctx, types.InteractiveParams{Scopes: []string{"openid"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RemoveAccount(ctx, res.Account); err != nil {
		t.Fatal(err)
	}
	// Segunda remoción: el motor reporta not found (el facade lo
	// traduce a no-op exitoso)
	if err := e.RemoveAccount(ctx, res.Account); !IsNotFound(err) {
		t.Fatalf("esperado ErrAccountNotFound, obtuvo %v", err)
	}
	// Sin credencial cacheada, silent pide interacción
	_, err = e.AcquireTokenSilent(ctx, []string{"openid"}, res.Account, "", false)
	if !ContainsVendorCode(err, "interaction_required") {
		t.Fatalf("esperado interaction_required, obtuvo %v", err)
	}
}

func TestMemory_InyeccionDeFallas(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.FailNextInteractive("AADB2C90118", "password change requested")
	_, err := e.AcquireToken(ctx, types.InteractiveParams{Scopes: []string{"openid"}})
	if !ContainsVendorCode(err, "AADB2C90118") {
		t.Fatalf("esperado AADB2C90118, obtuvo %v", err)
	}

	// La falla es one-shot
	if _, err := e.AcquireToken(ctx, types.InteractiveParams{Scopes: []string{"openid"}}); err != nil {
		t.Fatalf("segunda llamada no debía fallar: %v", err)
	}

	e.CancelNextInteractive()
	_, err = e.AcquireToken(ctx, types.InteractiveParams{Scopes: []string{"openid"}})
	if !IsUserCancelled(err) {
		t.Fatalf("esperado cancelación, obtuvo %v", err)
	}

	e.FailNextSilent("AADB2C90080", "The provided grant has expired.")
	_, err = e.AcquireTokenSilent(ctx, []string{"openid"}, Account{}, "", false)
	if !ContainsVendorCode(err, "AADB2C90080") {
		t.Fatalf("esperado AADB2C90080, obtuvo %v", err)
	}

	// Los contadores registran todas las llamadas, fallidas incluidas
	if got := e.InteractiveCalls(); got != 3 {
		t.Fatalf("llamadas interactivas: %d", got)
	}
	if got := e.SilentCalls(); got != 1 {
		t.Fatalf("llamadas silenciosas: %d", got)
	}
}
