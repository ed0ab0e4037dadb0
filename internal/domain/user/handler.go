package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/greenledger-api/internal/pkg/response"
	"github.com/greenledger/greenledger-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Login finds or registers a user and returns an identity token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}

	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	u, token, err := h.svc.Login(r.Context(), req.Username, Role(req.Role))
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			response.BadRequest(w, "role must be producer, buyer, or regulator")
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login failed")
		response.InternalError(w)
		return
	}

	response.OK(w, LoginResponse{
		User:    u,
		Token:   token,
		Message: "Login successful",
	})
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	return r
}
