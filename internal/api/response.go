// Package api provides HTTP response utilities for CoachFlow.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/growthloop/coachflow/internal/models"
)

// apologyMessage is returned on unexpected processing failures so the client
// can keep the conversation going.
const apologyMessage = "I apologize, but I'm experiencing a technical issue. Could you please try again?"

var apologyQuestions = []string{"What would you like to explore?"}

// Pre-marshaled responses for failure paths, so a broken turn never depends on
// runtime JSON encoding succeeding.
var (
	fallbackErrorResponse []byte
	apologyErrorResponse  []byte
)

// init validates that the failure-path responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}

	apology := models.NewAPIResponseBuilder().
		WithStatus(models.APIStatusError).
		WithMessage("Failed to process message").
		WithResult(&models.CoachingResponse{
			Message:   apologyMessage,
			Questions: apologyQuestions,
		}).
		Build()
	apologyErrorResponse, err = json.Marshal(apology)
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal apology response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal the response to JSON first to catch encoding errors before writing headers
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		// Use pre-marshaled fallback response - if this fails, we have bigger problems
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	// Write headers and response only after successful JSON marshaling
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeApologyResponse serves the pre-marshaled apology envelope. A failed turn
// still hands the client a coaching message and a question to continue with.
func writeApologyResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	if _, err := w.Write(apologyErrorResponse); err != nil {
		slog.Error("Server.writeApologyResponse: failed to write JSON response", "error", err)
	}
}
