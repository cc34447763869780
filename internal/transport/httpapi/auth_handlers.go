package httpapi

import (
	"net/http"
)

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	if err := a.auth.Register(r.Context(), req.Username, req.Password); err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	token, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(token))
}
