// Package models defines the core data structures for CoachFlow.
//
// It includes session state, coaching response envelopes, and API request/response
// types shared across modules.
package models

import (
	"errors"
)

// MessageType defines how an incoming session message is interpreted.
type MessageType string

const (
	// MessageTypeText is a free-form conversational message.
	MessageTypeText MessageType = "text"
	// MessageTypeTopicSelection selects a coaching topic by key.
	MessageTypeTopicSelection MessageType = "topic_selection"
	// MessageTypeActionCommitment records a structured action commitment.
	MessageTypeActionCommitment MessageType = "action_commitment"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a user message
	MaxMessageLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage         = errors.New("message cannot be empty")
	ErrMessageTooLong       = errors.New("message exceeds maximum length")
	ErrInvalidMessageType   = errors.New("invalid message type")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidStage         = errors.New("invalid conversation stage")
	ErrInvalidTopic         = errors.New("invalid topic selected")
	ErrTopicAlreadySet      = errors.New("topic already selected for this session")
	ErrInvalidActionPayload = errors.New("action commitment payload is not valid JSON")
)

// IsValidMessageType checks if the given message type is supported.
func IsValidMessageType(mt MessageType) bool {
	switch mt {
	case MessageTypeText, MessageTypeTopicSelection, MessageTypeActionCommitment:
		return true
	default:
		return false
	}
}

// StartSessionRequest is the payload for POST /api/sessions.
type StartSessionRequest struct {
	UserID string `json:"user_id,omitempty"` // generated when empty
}

// SendMessageRequest is the payload for POST /api/sessions/{id}/messages.
type SendMessageRequest struct {
	Message string      `json:"message"`
	Type    MessageType `json:"type,omitempty"` // defaults to text
}

// Validate performs validation on a SendMessageRequest.
// An empty type is normalized to text.
func (r *SendMessageRequest) Validate() error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if r.Type == "" {
		r.Type = MessageTypeText
	}
	if !IsValidMessageType(r.Type) {
		return ErrInvalidMessageType
	}
	return nil
}

// StageTransitionRequest is the payload for POST /api/sessions/{id}/stage.
type StageTransitionRequest struct {
	Stage Stage `json:"stage"`
}

// Validate performs validation on a StageTransitionRequest.
func (r *StageTransitionRequest) Validate() error {
	if !IsValidStage(r.Stage) {
		return ErrInvalidStage
	}
	return nil
}

// StartSessionResult wraps the identifiers and first envelope for a new session.
type StartSessionResult struct {
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id"`
	Response  *CoachingResponse `json:"response"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
