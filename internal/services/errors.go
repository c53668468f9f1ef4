package services

import "errors"

// Dataset service errors
var (
	// File errors
	ErrInvalidFileType = errors.New("file must be CSV")
	ErrEmptyFilename   = errors.New("no selected file")
)
