package http

import (
	"errors"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "datatidy/internal/errors"
	"datatidy/internal/middleware"
	"datatidy/internal/services"
	api "datatidy/pkg/contracts/api/v1"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to temporary files.
const multipartMemory = 8 << 20

// DatasetHandler handles dataset upload, inspection, cleaning and export
type DatasetHandler struct {
	service      DatasetServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(service DatasetServiceInterface, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	return &DatasetHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "dataset_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dataset routes. They are mounted at the root so the
// paths match the upload and cleaning client.
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/upload", h.Upload)
	r.With(middleware.ContentTypeValidator("application/json")).Post("/clean", h.Clean)

	r.Group(func(r chi.Router) {
		r.Use(h.FilenameCtx)
		r.Get("/data/{filename}", h.Data)
		r.Get("/upload-stats/{filename}", h.Stats)
		r.Get("/data-view/{filename}", h.View)
		r.Get("/export/{filename}", h.Export)
		r.Get("/reports/{filename}", h.Report)
		r.Delete("/datasets/{filename}", h.Delete)
	})
	r.Get("/datasets", h.List)

	return r
}

// FilenameCtx rejects path names that cannot name a stored dataset.
func (h *DatasetHandler) FilenameCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "filename") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("filename", "filename is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Upload handles POST /upload
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.ErrNoFilePart)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		// A part sent with an empty file name is parsed as a plain value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			h.errorHandler.HandleError(w, r, apierrors.ErrNoSelectedFile)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.ErrNoFilePart)
		return
	}
	defer file.Close()

	resp, err := h.service.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, uploadError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "file uploaded",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("filename", resp.Filename),
		slog.Int64("size", header.Size))
	render.JSON(w, r, resp)
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, services.ErrEmptyFilename):
		return apierrors.ErrNoSelectedFile
	case errors.Is(err, services.ErrInvalidFileType):
		return apierrors.ErrInvalidFileType
	}
	return err
}

// Data handles GET /data/{filename}
func (h *DatasetHandler) Data(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Data(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Stats handles GET /upload-stats/{filename}
func (h *DatasetHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Stats(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// View handles GET /data-view/{filename}?type=head|tail|range&n=&start=
func (h *DatasetHandler) View(w http.ResponseWriter, r *http.Request) {
	n, err := optionalInt(r, "n")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	start, err := optionalInt(r, "start")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	q := api.ViewQuery{
		Type:  r.URL.Query().Get("type"),
		N:     n,
		Start: start,
	}
	resp, err := h.service.View(r.Context(), chi.URLParam(r, "filename"), q)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// optionalInt returns nil when param is absent. Negative values are passed
// through; the view decides what they mean.
func optionalInt(r *http.Request, param string) (*int, error) {
	if !r.URL.Query().Has(param) {
		return nil, nil
	}
	n, err := middleware.QueryInt(r, param, 0, math.MinInt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Clean handles POST /clean
func (h *DatasetHandler) Clean(w http.ResponseWriter, r *http.Request) {
	var req api.CleanRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Clean(r.Context(), &req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "clean completed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("filename", req.Filename),
		slog.Int("rows_removed", resp.RowsRemoved),
		slog.Int("columns_removed", resp.ColumnsRemoved))
	render.JSON(w, r, resp)
}

// Report handles GET /reports/{filename}
func (h *DatasetHandler) Report(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Report(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Export handles GET /export/{filename}?format=csv|xlsx
func (h *DatasetHandler) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Export(r.Context(), chi.URLParam(r, "filename"), r.URL.Query().Get("format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		h.logger.WarnContext(r.Context(), "export write failed",
			slog.String("filename", res.Filename),
			slog.String("error", err.Error()))
	}
}

// List handles GET /datasets
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, resp)
}

// Delete handles DELETE /datasets/{filename}
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "filename")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
