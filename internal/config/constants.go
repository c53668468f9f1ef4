package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "datatidy"
	AppVersion = "1.0.0"

	// Derived dataset naming
	CleanedPrefix = "cleaned_"
	ReportSuffix  = ".report.json"

	// Dataset defaults
	DefaultPreviewRows    = 100
	DefaultViewRows       = 10
	DefaultMaxUploadBytes = 32 << 20 // 32MB

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultRequestTimeout  = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)
