package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAuthRequired       = errors.New("authentication required")
	ErrWrongPassword      = errors.New("wrong password")
	ErrDuplicateIdentity  = errors.New("email or username already registered")
	ErrValidation         = errors.New("missing or malformed input")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrIncompleteCardData = errors.New("incomplete card data")
	ErrCheckoutInFlight   = errors.New("checkout already in progress")
)
