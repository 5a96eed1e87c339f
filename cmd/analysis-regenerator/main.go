package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/reportflow/internal/models"
	"github.com/Lllllllleong/reportflow/internal/services"
)

var (
	regeneratorInstance *services.AnalysisRegeneratorFunction
	once                sync.Once
	initErr             error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleRegenerateAnalysis", handleRegenerateAnalysis)
}

func main() {}

// handleRegenerateAnalysis is the HTTP handler for the analysis regeneration service.
func handleRegenerateAnalysis(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		regeneratorInstance, initErr = services.NewAnalysisRegenerator(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: AnalysisRegenerator initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.RegenerateAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := regeneratorInstance.Process(r.Context(), &req)
	if err != nil {
		// Error is already logged with context in the Process method.
		code := services.StatusFor(err)
		http.Error(w, http.StatusText(code)+": "+err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error(
			"Failed to write response",
			"error", err,
			"reportId", req.ReportID,
			"executionId", req.ExecutionID,
		)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
