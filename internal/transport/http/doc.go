// Package http implements the HTTP handlers of the datatidy service. Handlers
// stay thin: they parse and validate the request, call a service and render
// the result. Every failure goes through the shared RFC 7807 error handler so
// clients see one problem+json shape.
//
// # Routes
//
//	POST   /upload                  multipart "file" part, CSV only
//	GET    /data/{filename}         first rows and total row count
//	GET    /upload-stats/{filename} dataset statistics
//	GET    /data-view/{filename}    head, tail or range window
//	POST   /clean                   run cleaning operations
//	GET    /reports/{filename}      report of a cleaning run
//	GET    /export/{filename}       download as csv or xlsx
//	GET    /datasets                list stored datasets
//	DELETE /datasets/{filename}     delete a dataset
//
// Health routes live under /api: /api/health, /api/health/ready,
// /api/health/live and /api/version.
package http
