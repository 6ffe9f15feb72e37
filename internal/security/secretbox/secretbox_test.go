package secretbox

import (
	"bytes"
	"strings"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	b, err := New(testKey())
	if err != nil {
		t.Fatal(err)
	}

	plain := `{"home_account_id":"abc-b2c_signin.tid","username":"u@example.com"}`
	ct, err := b.Seal(plain)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ct, "|") {
		t.Fatalf("formato inesperado: %q", ct)
	}
	if strings.Contains(ct, "home_account_id") {
		t.Fatal("el ciphertext expone el texto plano")
	}

	got, err := b.Open(ct)
	if err != nil {
		t.Fatal(err)
	}
	if got != plain {
		t.Fatalf("round trip: esperado %q, obtuvo %q", plain, got)
	}
}

func TestSeal_NonceUnico(t *testing.T) {
	b, err := New(testKey())
	if err != nil {
		t.Fatal(err)
	}
	a, _ := b.Seal("x")
	c, _ := b.Seal("x")
	if a == c {
		t.Fatal("dos Seal del mismo plaintext no deben coincidir (nonce aleatorio)")
	}
}

func TestOpen_Invalido(t *testing.T) {
	b, err := New(testKey())
	if err != nil {
		t.Fatal(err)
	}

	casos := []string{
		"",
		"sin-separador",
		"a|b|c",
		"!!!|???",
	}
	for _, c := range casos {
		if _, err := b.Open(c); err == nil {
			t.Fatalf("esperado error para %q", c)
		}
	}

	// Ciphertext manipulado no debe autenticar
	ct, _ := b.Seal("secreto")
	parts := strings.SplitN(ct, "|", 2)
	if _, err := b.Open(parts[0] + "|" + parts[1][:len(parts[1])-4] + "AAAA"); err == nil {
		t.Fatal("esperado fallo de autenticación GCM")
	}
}

func TestNew_ClaveInvalida(t *testing.T) {
	if _, err := New([]byte("corta")); err == nil {
		t.Fatal("esperado error con clave de longitud inválida")
	}
}
