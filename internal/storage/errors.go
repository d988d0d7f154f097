package storage

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrAlreadyExists is returned when an insert collides with a unique
// constraint, such as a duplicate user email.
var ErrAlreadyExists = errors.New("storage: already exists")

// ErrInsufficientCredits is returned when a spend would take a user's
// credit balance below zero.
var ErrInsufficientCredits = errors.New("storage: insufficient credits")

// ErrBudgetExceeded is returned when a spend would push a campaign's
// spent credits past its budget.
var ErrBudgetExceeded = errors.New("storage: campaign budget exceeded")
