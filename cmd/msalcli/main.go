// msalcli ejercita la librería contra el motor in-process: sign-in,
// token silencioso, listado de cuentas y sign-out. Pensado para probar
// configuración y flujos sin una app nativa.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/msalbridge/internal/b2c"
	"github.com/dropDatabas3/msalbridge/internal/config"
	"github.com/dropDatabas3/msalbridge/internal/engine"
	"github.com/dropDatabas3/msalbridge/internal/observability/logger"
	"github.com/dropDatabas3/msalbridge/internal/observability/metrics"
	"github.com/dropDatabas3/msalbridge/internal/store"
)

var (
	cfgPath   string
	scopes    []string
	loginHint string
)

func main() {
	root := &cobra.Command{
		Use:           "msalcli",
		Short:         "CLI de prueba del bridge MSAL (motor in-process)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path al YAML de configuración")
	root.PersistentFlags().StringSliceVar(&scopes, "scopes", nil, "scopes a pedir (override de auth.scopes)")

	signin := &cobra.Command{
		Use:   "signin",
		Short: "Sign-in interactivo (policy de sign-in-sign-up)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *b2c.Client, cfg *config.Config) error {
				res, err := c.SignIn(ctx, b2c.SignInParams{
					Scopes:    resolveScopes(cfg),
					LoginHint: loginHint,
				})
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	signin.Flags().StringVar(&loginHint, "login-hint", "", "usuario sugerido para el login")

	var forceRefresh bool
	token := &cobra.Command{
		Use:   "token",
		Short: "Adquisición silenciosa para la cuenta de sign-in-sign-up",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *b2c.Client, cfg *config.Config) error {
				res, err := c.AcquireTokenSilent(ctx, b2c.SilentParams{
					Scopes:       resolveScopes(cfg),
					ForceRefresh: forceRefresh,
				})
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	token.Flags().BoolVar(&forceRefresh, "force-refresh", false, "ignora el access token cacheado")

	accounts := &cobra.Command{
		Use:   "accounts",
		Short: "Lista las cuentas cacheadas (todas las policies)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *b2c.Client, cfg *config.Config) error {
				accounts, err := c.Accounts(ctx)
				if err != nil {
					return err
				}
				signedIn, err := c.IsSignedIn(ctx)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"signed_in": signedIn,
					"accounts":  accounts,
				})
			})
		},
	}

	signout := &cobra.Command{
		Use:   "signout",
		Short: "Sign-out de todas las cuentas cacheadas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *b2c.Client, cfg *config.Config) error {
				ok, err := c.SignOut(ctx, b2c.SignOutParams{})
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"signed_out": ok})
			})
		},
	}

	root.AddCommand(signin, token, accounts, signout)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withClient(fn func(ctx context.Context, c *b2c.Client, cfg *config.Config) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
	defer logger.Sync()
	if err := metrics.Register(nil); err != nil {
		return err
	}

	tokenTTL, _ := cfg.TokenTTL()
	refreshTTL, _ := cfg.RefreshTTL()

	c, err := b2c.New(b2c.Config{
		ClientID:      cfg.Auth.ClientID,
		AuthorityBase: cfg.Auth.AuthorityBase,
		RedirectURI:   cfg.Auth.RedirectURI,
		Policies: b2c.Policies{
			SignInSignUp:  cfg.Auth.Policies.SignInSignUp,
			PasswordReset: cfg.Auth.Policies.PasswordReset,
		},
		Engine: engine.Config{
			Driver:     cfg.Engine.Driver,
			TokenTTL:   tokenTTL,
			RefreshTTL: refreshTTL,
			Store: store.Config{
				Driver:        cfg.Store.Driver,
				Prefix:        cfg.Store.Prefix,
				Addr:          cfg.Store.Redis.Addr,
				Password:      cfg.Store.Redis.Password,
				DB:            cfg.Store.Redis.DB,
				EncryptAtRest: cfg.Store.EncryptAtRest,
			},
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := c.Init(ctx); err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c, cfg)
}

func resolveScopes(cfg *config.Config) []string {
	if len(scopes) > 0 {
		return scopes
	}
	if len(cfg.Auth.Scopes) > 0 {
		return cfg.Auth.Scopes
	}
	return []string{"openid", "offline_access"}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
