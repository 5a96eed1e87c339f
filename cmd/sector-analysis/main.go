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
	sectorInstance *services.SectorAnalysisFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleSectorAnalysis" is the entry point name configured in GCP.
	functions.HTTP("HandleSectorAnalysis", handleSectorAnalysis)
}

// main is required by the Go Functions Framework.
func main() {}

func handleSectorAnalysis(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		sectorInstance, initErr = services.NewSectorAnalysis(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: SectorAnalysis initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.SectorAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := sectorInstance.Process(r.Context(), &req)
	if err != nil {
		code := services.StatusFor(err)
		http.Error(w, http.StatusText(code)+": "+err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "reportId", req.ReportID, "sector", req.Sector)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
