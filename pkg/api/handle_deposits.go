package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"vault-deposit/pkg/deposit"
	"vault-deposit/pkg/parser"
	"vault-deposit/pkg/strategy"
	"vault-deposit/pkg/types"
	"vault-deposit/pkg/wallet"
)

// depositRequest is either a free-form command or the explicit fields
type depositRequest struct {
	Command  string `json:"command,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Asset    string `json:"asset,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type flowErrorResponse struct {
	Error  string                `json:"error"`
	Reason deposit.FailureReason `json:"reason"`
	State  deposit.State         `json:"state"`
}

type strategyResponse struct {
	ID string `json:"id"`
	strategy.Config
	LockDays int `json:"lock_days"`
}

func (s *Server) handleStrategiesGet(w http.ResponseWriter, r *http.Request) {
	list := s.strategies.List()
	result := make([]strategyResponse, 0, len(list))
	for _, c := range list {
		result = append(result, strategyResponse{ID: c.Key.String(), Config: c, LockDays: c.Key.Duration.Days()})
	}
	JSON(w, http.StatusOK, result)
}

func (s *Server) handleWalletGet(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": wallet.StatusOf(s.wallet)}
	if addr, ok := s.wallet.ActiveAddress(); ok {
		resp["address"] = addr.Hex()
	}
	JSON(w, http.StatusOK, resp)
}

func (s *Server) handleDepositsPost(w http.ResponseWriter, r *http.Request) {
	var body depositRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ERROR(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	req := &types.DepositRequest{Amount: body.Amount, Token: body.Asset, Kind: body.Kind, Duration: body.Duration}
	if body.Command != "" {
		parsed, err := parser.ParseDepositCommand(body.Command)
		if err != nil {
			ERROR(w, http.StatusBadRequest, err)
			return
		}
		req = parsed
	}

	key, err := parser.StrategyKey(req)
	if err != nil {
		ERROR(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := s.strategies.Lookup(key)
	if err != nil {
		ERROR(w, http.StatusNotFound, err)
		return
	}

	owner, ok := s.wallet.ActiveAddress()
	if !ok {
		ERROR(w, http.StatusConflict, deposit.ErrWalletUnavailable)
		return
	}

	running := s.orch.Current()
	h, err := s.orch.Submit(r.Context(), cfg.Intent(req.Amount, owner))
	if err != nil {
		var ferr *deposit.FlowError
		if !errors.As(err, &ferr) {
			ERROR(w, http.StatusInternalServerError, err)
			return
		}
		JSON(w, flowErrorStatus(ferr.Reason), flowErrorResponse{
			Error:  ferr.Error(),
			Reason: ferr.Reason,
			State:  h.State(),
		})
		return
	}

	if h == running {
		JSON(w, http.StatusOK, h.State())
		return
	}
	JSON(w, http.StatusAccepted, h.State())
}

func (s *Server) handleCurrentGet(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, s.orch.CurrentState())
}

func (s *Server) handleCurrentDelete(w http.ResponseWriter, r *http.Request) {
	cancelled := s.orch.Cancel()
	JSON(w, http.StatusOK, map[string]interface{}{
		"cancelled": cancelled,
		"state":     s.orch.CurrentState(),
	})
}

func (s *Server) handleCurrentReconcile(w http.ResponseWriter, r *http.Request) {
	h := s.orch.Current()
	if h == nil {
		ERROR(w, http.StatusNotFound, fmt.Errorf("no deposit submitted"))
		return
	}

	_, err := h.Reconcile(r.Context())
	switch {
	case err == nil:
		JSON(w, http.StatusOK, h.State())
	case errors.Is(err, deposit.ErrNotUncertain):
		ERROR(w, http.StatusConflict, err)
	case errors.Is(err, deposit.ErrConfirmationTimeout):
		JSON(w, http.StatusAccepted, map[string]interface{}{"pending": true, "state": h.State()})
	default:
		ERROR(w, http.StatusBadGateway, err)
	}
}

func flowErrorStatus(reason deposit.FailureReason) int {
	switch reason {
	case deposit.ReasonWalletUnavailable:
		return http.StatusConflict
	case deposit.ReasonInvalidAmount, deposit.ReasonInvalidIntent:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}
