package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNoOpportunity       = errors.New("no opportunity above threshold")
	ErrNoRoute             = errors.New("no viable route")
	ErrNoPrices            = errors.New("no venue prices available")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSimulationRevert    = errors.New("transaction simulation reverted")
	ErrApprovalFailed      = errors.New("token approval failed")
	ErrSwapFailed          = errors.New("swap transaction failed")
	ErrReceiptTimeout      = errors.New("timed out waiting for receipt")
	ErrCycleInProgress     = errors.New("cycle already in progress")
)
