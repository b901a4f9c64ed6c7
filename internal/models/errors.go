package models

import "errors"

// Record store errors
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrHoldingNotFound   = errors.New("holding not found")
	ErrDuplicateOrder    = errors.New("order already executed")
)
