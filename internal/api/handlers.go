package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcateer/chatrelay/internal/auth"
)

type JoinRequest struct {
	Username string `json:"username"`
}

type PostRequest struct {
	Message string `json:"message"`
}

type ResultResponse struct {
	Result string `json:"result"`
}

func (a *RelayApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Printf("json encode: %v", err)
	}
}

// writeResult maps a relay op result onto the wire. Warnings and store
// failures are results, not transport errors, only a rejected credential
// changes the status code.
func (a *RelayApp) writeResult(w http.ResponseWriter, result string, err error) {
	if errors.Is(err, auth.ErrUnauthorized) {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, ResultResponse{Result: result})
}

func (a *RelayApp) join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	result, err := a.relay.Join(req.Username, Credential(r.Context()))
	a.writeResult(w, result, err)
}

func (a *RelayApp) leave(w http.ResponseWriter, r *http.Request) {
	result, err := a.relay.Leave(Credential(r.Context()))
	a.writeResult(w, result, err)
}

func (a *RelayApp) post(w http.ResponseWriter, r *http.Request) {
	var req PostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	result, err := a.relay.Post(req.Message, Credential(r.Context()))
	a.writeResult(w, result, err)
}

func (a *RelayApp) drain(w http.ResponseWriter, r *http.Request) {
	result, err := a.relay.Drain(Credential(r.Context()))
	a.writeResult(w, result, err)
}

func (a *RelayApp) connectedUsers(w http.ResponseWriter, r *http.Request) {
	result, err := a.relay.ConnectedUsers(Credential(r.Context()))
	a.writeResult(w, result, err)
}

func (a *RelayApp) help(w http.ResponseWriter, r *http.Request) {
	result, err := a.relay.Help(Credential(r.Context()))
	a.writeResult(w, result, err)
}

func (a *RelayApp) about(w http.ResponseWriter, r *http.Request) {
	info, err := a.relay.About(Credential(r.Context()))
	if err != nil {
		errResp := NewUnauthorizedError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	a.writeJson(w, http.StatusOK, info)
}

func (a *RelayApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := a.db.Ping(); err != nil {
		a.log.Println("health check:", err)
		errResp := NewServiceUnavailableError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
