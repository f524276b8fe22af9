package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/divtrack/internal/interfaces"
	"github.com/ternarybob/divtrack/internal/models"
	"github.com/ternarybob/divtrack/internal/services/dividends"
)

// DividendsHandler serves the dividend table, its exports and the refresh action
type DividendsHandler struct {
	service interfaces.DividendsService
	csvPath string
	page    *template.Template
	logger  arbor.ILogger
}

func NewDividendsHandler(service interfaces.DividendsService, csvPath string, page *template.Template, logger arbor.ILogger) *DividendsHandler {
	return &DividendsHandler{
		service: service,
		csvPath: csvPath,
		page:    page,
		logger:  logger,
	}
}

// indexData is the view model of the index page
type indexData struct {
	Records []models.DividendRecord
	Report  *models.RunReport
	Error   string
}

// IndexHandler renders the table, refreshing first when the data is stale.
// GET /
func (h *DividendsHandler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var data indexData
	dataset, err := h.service.EnsureFresh(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to fetch dividend data")
		data.Error = "Failed to fetch dividend data"
		// Serve whatever the last good run left behind
		dataset, _ = h.service.Latest(r.Context())
	}
	if dataset != nil {
		data.Records = dataset.Records
		data.Report = &dataset.Report
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// RefreshHandler runs the pipeline synchronously.
// GET|POST /refresh
func (h *DividendsHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	dataset, err := h.service.Refresh(r.Context())
	if errors.Is(err, dividends.ErrRunInProgress) {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Error refreshing dividends")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().Int("records", len(dataset.Records)).Msg("Dividend data refreshed")
	WriteSuccess(w, "Data refreshed successfully")
}

// DownloadHandler sends the exported CSV as an attachment.
// GET /download
func (h *DividendsHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if info, err := os.Stat(h.csvPath); err != nil || info.IsDir() {
		http.Error(w, "CSV file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(h.csvPath)))
	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, h.csvPath)
}

// DataHandler returns the latest records as JSON.
// GET /data
func (h *DividendsHandler) DataHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	dataset, err := h.service.Latest(r.Context())
	if errors.Is(err, dividends.ErrNoData) {
		WriteJSON(w, http.StatusNotFound, []models.DividendRecord{})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load dividend data")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	records := dataset.Records
	if records == nil {
		records = []models.DividendRecord{}
	}
	WriteJSON(w, http.StatusOK, records)
}

// RunsHandler lists recent run reports.
// GET /runs?limit=N
func (h *DividendsHandler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	runs, err := h.service.History(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if limit := GetLimitParam(r, len(runs), len(runs)); limit < len(runs) {
		runs = runs[:limit]
	}
	if runs == nil {
		runs = []models.RunReport{}
	}
	WriteJSON(w, http.StatusOK, runs)
}
