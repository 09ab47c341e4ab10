package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	// Collaborator failures. Handlers convert these into a normal result.
	ErrCollaboratorTimeout = errors.New("collaborator timed out")
	ErrMalformedResult     = errors.New("no structured result")

	// Order-flow rejections, reported through the handler message and status.
	ErrProductNotFound    = errors.New("product not found")
	ErrOutOfStock         = errors.New("product out of stock")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidItems       = errors.New("invalid order items")
	ErrCustomerIncomplete = errors.New("customer information is incomplete")

	ErrBounceDetected = errors.New("handlers transferred back and forth")
)
