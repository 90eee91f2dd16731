package models

import "errors"

var (
	ErrChallenge     = errors.New("challenge token could not be obtained")
	ErrExtraction    = errors.New("status extraction failed")
	ErrPersistence   = errors.New("state persistence failed")
	ErrNotification  = errors.New("notification delivery failed")
	ErrConfiguration = errors.New("invalid configuration")
)
