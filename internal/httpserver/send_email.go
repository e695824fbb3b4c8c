package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nhle/mail-gateway/internal/mail"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type sendEmailRequest struct {
	Subject     string          `json:"subject"`
	TextContent string          `json:"text_content"`
	HTMLContent string          `json:"html_content"`
	HTMLContext string          `json:"html_context"`
	FromName    string          `json:"from_name"`
	EmailTo     json.RawMessage `json:"email_to"`
}

type sendEmailResponse struct {
	Status  string            `json:"status"`
	Results []mail.SendResult `json:"results"`
}

// HandleSendEmail sends one message to every address in email_to.
func (s *Server) HandleSendEmail(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	var req sendEmailRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	s.deps.RequestLogger.Info().
		Str("from_name", req.FromName).
		Str("subject", req.Subject).
		RawJSON("recipients", rawOrNull(req.EmailTo)).
		RawJSON("body", raw).
		Msg("HTTP_REQUEST")

	var recipients []string
	if err := json.Unmarshal(req.EmailTo, &recipients); err != nil || recipients == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "email_to must be a list"})
		return
	}

	html := req.HTMLContent
	if html == "" {
		html = req.HTMLContext
	}

	results, err := s.deps.Sender.Send(r.Context(), mail.Message{
		Subject:  req.Subject,
		Text:     req.TextContent,
		HTML:     html,
		FromName: req.FromName,
		To:       recipients,
	})
	if err != nil {
		s.deps.SendLogger.Error().
			Str("subject", req.Subject).
			Err(err).
			Msg("GLOBAL_FAIL")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:  "Failed to send emails",
			Detail: err.Error(),
		})
		return
	}

	if results == nil {
		results = []mail.SendResult{}
	}
	writeJSON(w, http.StatusOK, sendEmailResponse{Status: "ok", Results: results})
}

func rawOrNull(m json.RawMessage) []byte {
	if len(m) == 0 {
		return []byte("null")
	}
	return m
}
