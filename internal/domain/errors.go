package domain

import "errors"

var (
	ErrInvalidPolicyConfiguration = errors.New("invalid deposit policy configuration")
	ErrPolicyNotFound             = errors.New("deposit policy not found")
	ErrDepositNotFound            = errors.New("deposit not found")
	ErrDepositExists              = errors.New("deposit already exists for booking")
	ErrInvalidTransition          = errors.New("invalid deposit state transition")
	ErrAlreadyResolved            = errors.New("deposit already resolved")
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrInvalidID                  = errors.New("invalid id")
)
