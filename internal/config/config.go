// Package config carga la configuración del bridge desde YAML con
// overrides por variables de entorno (y .env vía godotenv).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Auth struct {
		ClientID      string `yaml:"client_id"`
		AuthorityBase string `yaml:"authority_base"`
		RedirectURI   string `yaml:"redirect_uri"`
		Policies      struct {
			SignInSignUp  string `yaml:"sign_in_sign_up"`
			PasswordReset string `yaml:"password_reset"`
		} `yaml:"policies"`
		Scopes []string `yaml:"scopes"`
	} `yaml:"auth"`

	Engine struct {
		Driver     string `yaml:"driver"` // memory (default)
		TokenTTL   string `yaml:"token_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"engine"`

	Store struct {
		Driver        string `yaml:"driver"` // memory | redis
		Prefix        string `yaml:"prefix"`
		EncryptAtRest bool   `yaml:"encrypt_at_rest"`
		Redis         struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"store"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML (si path no es vacío), aplica overrides de entorno y
// defaults. Carga .env del cwd si existe (best effort).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	c := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: leer %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, c); err != nil {
			return nil, fmt.Errorf("config: parsear %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Engine.Driver == "" {
		c.Engine.Driver = "memory"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = "msal"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("MSAL_CLIENT_ID"); ok {
		c.Auth.ClientID = v
	}
	if v, ok := getEnvStr("MSAL_AUTHORITY_BASE"); ok {
		c.Auth.AuthorityBase = v
	}
	if v, ok := getEnvStr("MSAL_REDIRECT_URI"); ok {
		c.Auth.RedirectURI = v
	}
	if v, ok := getEnvStr("MSAL_POLICY_SIGN_IN_SIGN_UP"); ok {
		c.Auth.Policies.SignInSignUp = v
	}
	if v, ok := getEnvStr("MSAL_POLICY_PASSWORD_RESET"); ok {
		c.Auth.Policies.PasswordReset = v
	}
	if v, ok := getEnvCSV("MSAL_SCOPES"); ok && len(v) > 0 {
		c.Auth.Scopes = v
	}

	if v, ok := getEnvStr("MSAL_ENGINE_DRIVER"); ok {
		c.Engine.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("MSAL_ENGINE_TOKEN_TTL"); ok {
		c.Engine.TokenTTL = v
	}
	if v, ok := getEnvStr("MSAL_ENGINE_REFRESH_TTL"); ok {
		c.Engine.RefreshTTL = v
	}

	if v, ok := getEnvStr("MSAL_STORE_DRIVER"); ok {
		c.Store.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := getEnvStr("MSAL_STORE_PREFIX"); ok {
		c.Store.Prefix = v
	}
	if v, ok := getEnvBool("MSAL_STORE_ENCRYPT_AT_REST"); ok {
		c.Store.EncryptAtRest = v
	}
	if v, ok := getEnvStr("MSAL_REDIS_ADDR"); ok {
		c.Store.Redis.Addr = v
	}
	if v, ok := getEnvStr("MSAL_REDIS_PASSWORD"); ok {
		c.Store.Redis.Password = v
	}
	if v, ok := getEnvInt("MSAL_REDIS_DB"); ok {
		c.Store.Redis.DB = v
	}

	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate valida los valores críticos.
func (c *Config) Validate() error {
	if c.Auth.ClientID == "" {
		return fmt.Errorf("config: auth.client_id es requerido")
	}
	if c.Auth.AuthorityBase == "" {
		return fmt.Errorf("config: auth.authority_base es requerido")
	}
	if c.Auth.Policies.SignInSignUp == "" {
		return fmt.Errorf("config: auth.policies.sign_in_sign_up es requerido")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if _, err := c.RefreshTTL(); err != nil {
		return err
	}
	return nil
}

// TokenTTL parsea engine.token_ttl ("45m", "1h"). 0 si no está seteado.
func (c *Config) TokenTTL() (time.Duration, error) {
	return parseTTL("engine.token_ttl", c.Engine.TokenTTL)
}

// RefreshTTL parsea engine.refresh_ttl. 0 si no está seteado.
func (c *Config) RefreshTTL() (time.Duration, error) {
	return parseTTL("engine.refresh_ttl", c.Engine.RefreshTTL)
}

func parseTTL(field, s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s inválido: %w", field, err)
	}
	return d, nil
}

// --- Helpers de entorno ---

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func getEnvBool(key string) (bool, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return b, true
}

func getEnvInt(key string) (int, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvCSV(key string) ([]string, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out, true
}
