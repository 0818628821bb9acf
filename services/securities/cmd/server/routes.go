package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/authn"
	"github.com/RoterHund/securities-manager/pkg/httpx"
	"github.com/RoterHund/securities-manager/services/securities/internal/engine"
)

// verifier resolves a bearer token to an identity. Satisfied by
// identclient.Client; tests plug in a fake.
type verifier interface {
	Verify(ctx context.Context, token string) (*authn.Identity, error)
}

type identityKey struct{}

func identityFrom(r *http.Request) *authn.Identity {
	id, _ := r.Context().Value(identityKey{}).(*authn.Identity)
	return id
}

// requireClass authenticates the bearer token and rejects credentials of any
// other identity class.
func requireClass(v verifier, class authn.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			if token == "" {
				httpx.WriteAppError(w, authn.ErrUnauthorized)
				return
			}
			id, err := v.Verify(r.Context(), token)
			if err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			if id.Class != class {
				httpx.WriteAppError(w, authn.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

func newRouter(eng *engine.Engine, v verifier, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(httpx.RequestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/securities", func(api chi.Router) {
		api.Get("/instruments", func(w http.ResponseWriter, r *http.Request) {
			list, err := eng.ListInstruments(r.Context())
			if err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			out := make([]map[string]any, 0, len(list))
			for _, ins := range list {
				out = append(out, instrumentJSON(ins))
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "instruments": out})
		})

		api.Get("/instruments/{instrument_id}", func(w http.ResponseWriter, r *http.Request) {
			ins, err := eng.GetInstrument(r.Context(), chi.URLParam(r, "instrument_id"))
			if err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "instrument": instrumentJSON(ins)})
		})

		api.Group(func(issuer chi.Router) {
			issuer.Use(requireClass(v, authn.ClassIssuer))

			issuer.Post("/instruments", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					SecurityType string `json:"security_type"`
					SecurityForm string `json:"security_form"`
					Name         string `json:"name"`
					Symbol       string `json:"symbol"`
				}
				if err := httpx.ReadJSON(r, &req); err != nil {
					httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
					return
				}
				ins, err := eng.CreateInstrument(r.Context(), identityFrom(r).CredentialID,
					req.SecurityType, req.SecurityForm, req.Name, req.Symbol)
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, map[string]any{"request_id": httpx.NewRequestID(), "instrument": instrumentJSON(ins)})
			})

			issuer.Post("/instruments/{instrument_id}/metadata", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				}
				if err := httpx.ReadJSON(r, &req); err != nil {
					httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
					return
				}
				err := eng.UpdateMetadata(r.Context(), identityFrom(r).CredentialID,
					chi.URLParam(r, "instrument_id"), req.Key, req.Value)
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "updated": true})
			})

			issuer.Post("/instruments/{instrument_id}/subscription/open", func(w http.ResponseWriter, r *http.Request) {
				err := eng.OpenSubscription(r.Context(), identityFrom(r).CredentialID, chi.URLParam(r, "instrument_id"))
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "subscription_status": "open"})
			})

			issuer.Post("/instruments/{instrument_id}/subscription/close", func(w http.ResponseWriter, r *http.Request) {
				err := eng.CloseSubscription(r.Context(), identityFrom(r).CredentialID, chi.URLParam(r, "instrument_id"))
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "subscription_status": "closed"})
			})

			issuer.Post("/instruments/{instrument_id}/claim-cash", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					BatchSize int `json:"batch_size"`
				}
				if err := httpx.ReadJSON(r, &req); err != nil {
					httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
					return
				}
				proceeds, swept, err := eng.IssuerClaimCash(r.Context(), identityFrom(r).CredentialID,
					chi.URLParam(r, "instrument_id"), req.BatchSize)
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{
					"request_id": httpx.NewRequestID(),
					"swept":      swept,
					"proceeds":   cashJSON(proceeds),
				})
			})

			issuer.Post("/funds/deposit", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Currency string `json:"currency"`
					Amount   string `json:"amount"`
				}
				if err := httpx.ReadJSON(r, &req); err != nil {
					httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
					return
				}
				err := eng.IssuerDepositFunds(r.Context(), identityFrom(r).CredentialID, req.Currency, req.Amount)
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "deposited": true})
			})
		})

		api.Group(func(agent chi.Router) {
			agent.Use(requireClass(v, authn.ClassAgent))

			agent.Post("/instruments/{instrument_id}/events", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					ActionType string `json:"action_type"`
					Percent    string `json:"percent"`
				}
				if err := httpx.ReadJSON(r, &req); err != nil {
					httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
					return
				}
				ev, err := eng.AppendEvent(r.Context(), identityFrom(r).IssuerID,
					chi.URLParam(r, "instrument_id"), req.ActionType, req.Percent)
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, map[string]any{
					"request_id": httpx.NewRequestID(),
					"event": map[string]any{
						"instrument_id": ev.ID.Instrument,
						"seq":           ev.ID.Seq,
						"action_type":   ev.Kind,
						"percent":       ev.Percent.String(),
					},
				})
			})

			agent.Post("/instruments/{instrument_id}/vintages/issue", func(w http.ResponseWriter, r *http.Request) {
				minted, err := eng.IssuePendingVintages(r.Context(), identityFrom(r).IssuerID, chi.URLParam(r, "instrument_id"))
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				out := make([]map[string]any, 0, len(minted))
				for _, id := range minted {
					out = append(out, map[string]any{"instrument_id": id.Instrument, "seq": id.Seq})
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "issued": out})
			})
		})

		api.Group(func(investor chi.Router) {
			investor.Use(requireClass(v, authn.ClassInvestor))

			investor.Post("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					InstrumentID string `json:"instrument_id"`
					Quantity     string `json:"quantity"`
				}
				if err := httpx.ReadJSON(r, &req); err != nil {
					httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
					return
				}
				es, err := eng.Subscribe(r.Context(), identityFrom(r).CredentialID, req.InstrumentID, req.Quantity)
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, map[string]any{"request_id": httpx.NewRequestID(), "escrow": escrowJSON(es)})
			})

			investor.Post("/subscriptions/{escrow_id}/payment", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Currency string `json:"currency"`
					Amount   string `json:"amount"`
				}
				if err := httpx.ReadJSON(r, &req); err != nil {
					httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
					return
				}
				remainder, err := eng.TransferPayment(r.Context(), identityFrom(r).CredentialID,
					chi.URLParam(r, "escrow_id"), req.Currency, req.Amount)
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "remainder": cashJSON(remainder)})
			})

			investor.Post("/subscriptions/{escrow_id}/payment/cancel", func(w http.ResponseWriter, r *http.Request) {
				refund, err := eng.CancelPayment(r.Context(), identityFrom(r).CredentialID, chi.URLParam(r, "escrow_id"))
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "refund": cashJSON(refund)})
			})

			investor.Post("/subscriptions/{escrow_id}/claim", func(w http.ResponseWriter, r *http.Request) {
				bucket, err := eng.ClaimSecurity(r.Context(), identityFrom(r).CredentialID, chi.URLParam(r, "escrow_id"))
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{"request_id": httpx.NewRequestID(), "securities": securityJSON(bucket)})
			})

			investor.Post("/holdings/claim", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					InstrumentID string `json:"instrument_id"`
					Seq          int64  `json:"seq"`
					Amount       string `json:"amount"`
				}
				if err := httpx.ReadJSON(r, &req); err != nil {
					httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
					return
				}
				payout, rolled, err := eng.ClaimCorporateAction(r.Context(), identityFrom(r).CredentialID,
					engine.EventID{Instrument: req.InstrumentID, Seq: req.Seq}, req.Amount)
				if err != nil {
					httpx.WriteAppError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, map[string]any{
					"request_id": httpx.NewRequestID(),
					"payout":     cashJSON(payout),
					"securities": securityJSON(rolled),
				})
			})
		})
	})

	return r
}

func instrumentJSON(ins *engine.Instrument) map[string]any {
	return map[string]any{
		"instrument_id":       ins.ID,
		"issuer_id":           ins.IssuerID,
		"name":                ins.Name,
		"symbol":              ins.Symbol,
		"security_type":       ins.Type,
		"security_form":       ins.Form,
		"status":              ins.Status,
		"subscription_status": ins.Subscription,
		"cap":                 ins.Cap.String(),
		"price":               ins.Price.String(),
		"issuance_amount":     ins.IssuanceAmount.String(),
		"subscribed":          ins.Subscribed.String(),
		"version":             ins.Version,
		"metadata":            ins.Metadata,
	}
}

func escrowJSON(es *engine.Escrow) map[string]any {
	return map[string]any{
		"escrow_id":     es.ID,
		"instrument_id": es.InstrumentID,
		"quantity":      es.Quantity.String(),
		"pay_currency":  es.PayCurrency,
		"payment_due":   es.PayAmount.String(),
		"status":        es.Status,
	}
}

func cashJSON(b *engine.CashBucket) map[string]any {
	return map[string]any{"currency": b.Currency, "amount": b.Amount.String()}
}

func securityJSON(b *engine.SecurityBucket) map[string]any {
	return map[string]any{
		"instrument_id": b.Vintage.Instrument,
		"seq":           b.Vintage.Seq,
		"amount":        b.Amount.String(),
	}
}
