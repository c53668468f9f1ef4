// Package config provides centralized configuration management for the
// datatidy service. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration values
// throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern DATATIDY_<SECTION>_<FIELD>:
//
//	DATATIDY_SERVER_PORT=8080
//	DATATIDY_STORAGE_BACKEND=s3
//	DATATIDY_STORAGE_S3_BUCKET=datasets
//	DATATIDY_LOGGING_LEVEL=debug
//	DATATIDY_DATASET_WIDTH_POLICY=lenient
//
// DATATIDY_CONFIG points at a YAML file; otherwise config.yaml and
// configs/config.yaml are tried.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Testing
//
// Use config.Default() for a configuration that needs no environment
// variables or files.
package config
