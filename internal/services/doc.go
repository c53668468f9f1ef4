// Package services implements the business logic layer of datatidy. It sits
// between the HTTP handlers and the dataset store, keeping the cleaning and
// view engine free of transport and storage concerns.
//
// # Services
//
//	- DatasetService: upload, statistics, preview, views, cleaning, export
//	- HealthService: liveness, readiness and version information
//
// # Concurrency
//
// DatasetService serializes writers per stored key and lets readers run
// concurrently. Concurrent loads of the same object in the same mode share
// one parse through singleflight, so loaded tables are treated as read-only;
// the cleaner always works on a clone.
//
// # Error Handling
//
// Services return storage and engine errors unchanged (wrapped with %w) so
// that the HTTP error handler can map them with errors.Is and errors.As:
//
//	- storage.ErrNotFound for unknown datasets
//	- dataprocessing.ParseError for input that is not delimited text
//	- dataprocessing.ErrInvalidViewKind for unknown view types
//	- dataprocessing.ProcessingError for unexpected engine failures
//
// # Testing
//
// Services are tested against storage.MemoryStore, with a buffered slog
// handler from internal/shared/testutil for log assertions.
package services
