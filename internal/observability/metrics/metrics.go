// Package metrics define las métricas Prometheus de la librería. Viven
// en un paquete propio para evitar ciclos de import entre el facade y el
// orquestador.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TokenAcquisitions cuenta adquisiciones de token por tipo y resultado.
	// kind: "interactive" | "silent"; outcome: "ok" | "cancelled" | "error".
	TokenAcquisitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "msal_token_acquisitions_total",
		Help: "Adquisiciones de token por tipo y resultado",
	}, []string{"kind", "outcome"})

	// RecoveryFlows cuenta los flujos de recuperación del orquestador.
	// flow: "password_reset" | "expired_grant"
	RecoveryFlows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "msal_recovery_flows_total",
		Help: "Flujos de recuperación disparados (reset de password, grant expirado)",
	}, []string{"flow"})

	// SignOuts cuenta sign-outs por resultado. outcome: "ok" | "error"
	SignOuts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "msal_signouts_total",
		Help: "Sign-outs por resultado",
	}, []string{"outcome"})
)

// Register registra las métricas en el registry dado (default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{TokenAcquisitions, RecoveryFlows, SignOuts} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
