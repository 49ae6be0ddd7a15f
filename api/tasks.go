package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mohans/kaiamate/executor"
	"github.com/mohans/kaiamate/orchestrator"
	"github.com/mohans/kaiamate/task"
)

type executeRequest struct {
	TaskType      task.Type      `json:"taskType"`
	Parameters    map[string]any `json:"parameters"`
	WalletAddress string         `json:"walletAddress"`
	UserID        string         `json:"userId"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(string(req.TaskType)) == "" || strings.TrimSpace(req.WalletAddress) == "" {
		writeError(w, http.StatusBadRequest, "taskType and walletAddress are required")
		return
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}
	receipt, err := s.tasks.Create(r.Context(), orchestrator.CreateRequest{
		Type:          req.TaskType,
		Parameters:    req.Parameters,
		WalletAddress: req.WalletAddress,
		UserID:        req.UserID,
	})
	if err != nil {
		s.logger.Error("create task", "type", req.TaskType, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to execute task")
		return
	}
	writeData(w, receipt)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("taskId")
	view, err := s.tasks.Status(r.Context(), id)
	if errors.Is(err, task.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task status", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get task status")
		return
	}
	writeData(w, view)
}

func (s *Server) handleUserTasks(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("walletAddress")
	limit := queryInt(r, "limit", orchestrator.DefaultListLimit)
	tasks, err := s.tasks.UserTasks(r.Context(), wallet, limit)
	if err != nil {
		s.logger.Error("get user tasks", "wallet", wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get user tasks")
		return
	}
	writeData(w, tasks)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("taskId")
	ok, err := s.tasks.Cancel(r.Context(), id)
	if err != nil {
		s.logger.Error("cancel task", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to cancel task")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Task cannot be cancelled or not found")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Task cancelled successfully"})
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeData(w, executor.Templates())
}
