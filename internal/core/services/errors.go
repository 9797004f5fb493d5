package services

import "errors"

// Task errors
var (
	ErrTaskNotFound    = errors.New("task: not found")
	ErrTaskNotTracked  = errors.New("task: not tracked by this watcher")
	ErrInvalidTaskType = errors.New("task: invalid task type")
)

// Training errors
var (
	ErrTrainingInvalidInput = errors.New("training: invalid input")
	ErrLaunchFailed         = errors.New("training: launch failed")
	ErrStopFailed           = errors.New("training: stop request failed")
	ErrModelListFailed      = errors.New("training: model list failed")
)

// Dataset errors
var (
	ErrDatasetNotFound     = errors.New("dataset: not found")
	ErrDatasetExists       = errors.New("dataset: name already in use")
	ErrDatasetInvalidInput = errors.New("dataset: invalid input")
	ErrDatasetTooLarge     = errors.New("dataset: file exceeds the upload limit")
)

// Settings errors
var (
	ErrSettingNotFound = errors.New("setting: not found")
	ErrSettingReadOnly = errors.New("setting: key is read-only")
)

// Maintenance errors
var (
	ErrPruneValidationFailed = errors.New("maintenance: prune confirmation failed")
)

// Auth errors
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAuthNotConfigured  = errors.New("auth: password login is not configured")
)
