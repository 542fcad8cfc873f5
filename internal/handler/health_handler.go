package handler

import (
	"net/http"
	"strconv"

	"fund-directory/internal/model"
	"fund-directory/internal/model/requestresponse"
	"fund-directory/internal/ports"
)

type HealthHandler struct {
	ports.HealthService
}

func NewHealthHandler(healthService ports.HealthService) *HealthHandler {
	return &HealthHandler{healthService}
}

// Health godoc
// @Summary Состояние сервиса
// @Description healthy, degraded или unhealthy. unhealthy отвечает 503. С verbose=true возвращает отчёт по каждой зависимости.
// @Tags Health
// @Produce json
// @Param verbose query bool false "Подробный отчёт"
// @Success 200 {object} model.HealthReport
// @Failure 503 {object} model.HealthReport
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		h.HealthHead(w, r)
		return
	}
	setNoStore(w)

	report := h.HealthService.Report(r.Context())

	statusCode := http.StatusOK
	if report.Status == model.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	if verbose, _ := strconv.ParseBool(r.URL.Query().Get("verbose")); verbose {
		writeJSON(w, statusCode, report)
		return
	}

	writeJSON(w, statusCode, requestresponse.HealthMinimalResponse{Status: string(report.Status)})
}

// HealthHead godoc
// @Summary Состояние сервиса
// @Description Только код ответа. Проверяет одну базу, 503 при её отказе.
// @Tags Health
// @Success 200
// @Failure 503
// @Router /health [head]
func (h *HealthHandler) HealthHead(w http.ResponseWriter, r *http.Request) {
	setNoStore(w)

	statusCode := http.StatusOK
	if h.HealthService.Liveness(r.Context()).Status == model.CheckFail {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
}

func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
