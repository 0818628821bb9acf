package main

import (
	"context"
	"net/http"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/RoterHund/securities-manager/pkg/apperr"
	"github.com/RoterHund/securities-manager/pkg/authn"
	"github.com/RoterHund/securities-manager/pkg/db"
	"github.com/RoterHund/securities-manager/pkg/httpx"
	"github.com/RoterHund/securities-manager/services/identity/internal/kyc"
	"github.com/RoterHund/securities-manager/services/identity/internal/store"
)

type config struct {
	Port string `env:"SERVICE_PORT" envDefault:"8081"`
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal("parse config", zap.Error(err))
	}

	ctx := context.Background()
	pool := db.MustConnect(ctx)
	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}

	log.Info("identity service listening", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, newRouter(st, pool, log)); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newRouter(st *store.Store, pool *pgxpool.Pool, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.RequestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/identity", func(api chi.Router) {
		api.Post("/issuers", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Name       string `json:"name"`
				CompanyLEI string `json:"company_lei"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
				return
			}
			if req.Name == "" {
				httpx.WriteAppError(w, apperr.New(apperr.InvalidArgument, "name is required"))
				return
			}
			id, token, err := st.CreateIssuer(r.Context(), req.Name, req.CompanyLEI)
			if err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, map[string]any{
				"request_id":  httpx.NewRequestID(),
				"identity":    id,
				"credentials": map[string]string{"token": token},
			})
		})

		// Agent credentials are minted by the appointing issuer.
		api.Post("/agents", func(w http.ResponseWriter, r *http.Request) {
			issuer, err := authn.VerifyBearer(r.Context(), pool, r.Header.Get("Authorization"), authn.ClassIssuer)
			if err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			var req struct {
				CompanyLEI string `json:"company_lei"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
				return
			}
			lei := req.CompanyLEI
			if lei == "" {
				lei = issuer.CompanyLEI
			}
			id, token, err := st.CreateAgent(r.Context(), issuer.CredentialID, lei)
			if err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, map[string]any{
				"request_id":  httpx.NewRequestID(),
				"identity":    id,
				"credentials": map[string]string{"token": token},
			})
		})

		api.Post("/investors/kyc", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Country      string `json:"country"`
				FavouriteInt int    `json:"favourite_int"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
				return
			}
			if err := kyc.Check(req.Country, req.FavouriteInt); err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			id, token, err := st.CreateInvestor(r.Context())
			if err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, map[string]any{
				"request_id":  httpx.NewRequestID(),
				"identity":    id,
				"credentials": map[string]string{"token": token},
			})
		})

		api.Post("/verify", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Token string `json:"token"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteAppError(w, apperr.Wrap(apperr.InvalidArgument, "invalid request body", err))
				return
			}
			id, err := authn.Lookup(r.Context(), pool, req.Token)
			if err != nil {
				httpx.WriteAppError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]any{
				"request_id": httpx.NewRequestID(),
				"identity":   id,
			})
		})
	})

	return r
}
