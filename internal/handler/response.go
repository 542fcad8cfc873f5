package handler

import (
	"encoding/json"
	"net"
	"net/http"

	"fund-directory/internal/model"
	"fund-directory/internal/model/requestresponse"

	log "github.com/sirupsen/logrus"
)

const sessionEndedMessage = "сессия завершена, войдите снова"

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return err
	}
	return nil
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, requestresponse.ErrorResponse{
		Error: requestresponse.ErrorDetail{
			Code: statusCode,
			Text: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnf("ошибка кодирования ответа: %v", err)
	}
}

// clientInfo : RealIP уже подставил адрес клиента в RemoteAddr, порт может остаться
func clientInfo(r *http.Request) model.ClientInfo {
	return model.ClientInfo{
		UserAgent: r.UserAgent(),
		IpAddress: clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
