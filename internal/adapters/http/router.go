package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(handler *Handler, jwtSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })
	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(jwtSecret))
			r.Post("/agents/register", handler.registerAgent)
			r.Post("/agents/deposit", handler.deposit)
			r.Post("/agents/withdraw", handler.withdraw)
			r.Get("/agents/{address}", handler.getAgent)
			r.Get("/agents/{address}/stats", handler.getAgentStats)
			r.Get("/agents/{address}/balance", handler.getBalance)
			r.Get("/agents/{address}/judge-fee", handler.getJudgeFee)
			r.Get("/agents/{address}/identity", handler.checkIdentity)
			r.Post("/services", handler.registerService)
			r.Post("/services/{serviceID}/status", handler.updateService)
			r.Get("/services/{serviceID}", handler.getService)
			r.Post("/transactions", handler.requestService)
			r.Post("/transactions/{transactionID}/fulfill", handler.fulfillTransaction)
			r.Post("/transactions/{transactionID}/confirm", handler.confirmTransaction)
			r.Post("/transactions/{transactionID}/auto-complete", handler.autoCompleteTransaction)
			r.Get("/transactions/{transactionID}", handler.getTransaction)
			r.Post("/disputes", handler.fileDispute)
			r.Post("/disputes/{disputeID}/respond", handler.respondDispute)
			r.Post("/disputes/{disputeID}/ruling", handler.submitRuling)
			r.Get("/disputes/{disputeID}", handler.getDispute)
			r.Post("/evidence", handler.commitEvidence)
			r.Get("/evidence", handler.getEvidence)
			r.Get("/status", handler.status)
		})
	})
	return r
}
