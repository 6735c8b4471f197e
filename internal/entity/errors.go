package entity

import "errors"

// Domain errors
var (
	// Conversation errors
	ErrConversationNotFound = errors.New("conversation not found")
	ErrVersionConflict      = errors.New("conversation version conflict")

	// Pipeline errors
	ErrGeneration  = errors.New("generation failed")
	ErrRetrieval   = errors.New("context retrieval failed")
	ErrPersistence = errors.New("conversation persistence failed")

	// File errors
	ErrInvalidFile      = errors.New("invalid file")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidExtension = errors.New("invalid file extension")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidParameter = errors.New("invalid parameter")
)
