package client

import (
	"strings"

	"github.com/dropDatabas3/msalbridge/internal/domain/types"
	"github.com/dropDatabas3/msalbridge/internal/engine"
)

// Separador entre home account id y environment cuando el motor usa
// clave compuesta. No aparece en los home account ids de ningún backend.
const compositeSep = "@"

// El facade es el único lugar que conoce la clave nativa del motor.
// Hacia afuera una cuenta se identifica por un único string opaco
// (Identifier) usable como clave de matcheo exacto; acá se deriva de la
// clave compuesta del motor y se reconstruye al volver a entrar.

func joinIdentifier(caps engine.Capabilities, homeAccountID, environment string) string {
	if caps.CompositeAccountKey && environment != "" {
		return homeAccountID + compositeSep + environment
	}
	return homeAccountID
}

func splitIdentifier(caps engine.Capabilities, identifier string) (homeAccountID, environment string) {
	if !caps.CompositeAccountKey {
		return identifier, ""
	}
	i := strings.LastIndex(identifier, compositeSep)
	if i < 0 {
		return identifier, ""
	}
	return identifier[:i], identifier[i+1:]
}

func (p *PublicClientApplication) toPublicAccount(eng engine.Engine, a engine.Account) types.Account {
	return types.Account{
		Identifier:  joinIdentifier(eng.Capabilities(), a.HomeAccountID, a.Environment),
		Environment: a.Environment,
		TenantID:    a.TenantID,
		Username:    a.Username,
		Claims:      a.Claims,
	}
}

func (p *PublicClientApplication) toNativeAccount(eng engine.Engine, a types.Account) engine.Account {
	homeID, env := splitIdentifier(eng.Capabilities(), a.Identifier)
	if env == "" {
		env = a.Environment
	}
	return engine.Account{
		HomeAccountID: homeID,
		Environment:   env,
		TenantID:      a.TenantID,
		Username:      a.Username,
		Claims:        a.Claims,
	}
}

func (p *PublicClientApplication) toPublicResult(eng engine.Engine, r *engine.Result) *types.Result {
	return &types.Result{
		AccessToken: r.AccessToken,
		ExpiresOn:   r.ExpiresOn,
		IDToken:     r.IDToken,
		Scopes:      r.Scopes,
		TenantID:    r.TenantID,
		Account:     p.toPublicAccount(eng, r.Account),
	}
}
