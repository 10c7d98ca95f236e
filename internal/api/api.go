package api

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hole-detector/internal/core"
	"hole-detector/internal/database"
	"hole-detector/internal/messaging"
	"hole-detector/internal/storage"
	"hole-detector/pkg/api"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	uploadFormField   = "files"
	defaultBatchLimit = 20
	maxBatchLimit     = 100
	publishTimeout    = 5 * time.Second
)

type DetectionService struct {
	db        *gorm.DB
	storage   storage.Provider
	publisher messaging.Publisher
	pipeline  *core.Pipeline

	archiveBucket  string
	maxUploadBytes int64
}

func NewDetectionService(db *gorm.DB, storage storage.Provider, publisher messaging.Publisher, pipeline *core.Pipeline, archiveBucket string, maxUploadBytes int64) *DetectionService {
	return &DetectionService{
		db:             db,
		storage:        storage,
		publisher:      publisher,
		pipeline:       pipeline,
		archiveBucket:  archiveBucket,
		maxUploadBytes: maxUploadBytes,
	}
}

func (s *DetectionService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Get("/", ServeUI)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detect", FileHandler(s.Detect))
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", RestHandler(s.CreateBatch))
			r.Get("/", RestHandler(s.ListBatches))
			r.Get("/{batch_id}", RestHandler(s.GetBatch))
			r.Get("/{batch_id}/archive", FileHandler(s.GetBatchArchive))
		})
	})
}

func archiveURL(batchId uuid.UUID) string {
	return fmt.Sprintf("/api/v1/batches/%s/archive", batchId)
}

func uploadReadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return CodedErrorf(http.StatusRequestEntityTooLarge, "upload exceeds the %d byte limit", maxBytesErr.Limit)
	}
	return CodedErrorf(http.StatusBadRequest, "error reading uploaded files: %v", err)
}

// readUploads collects every non-empty file sent in the "files" field, in
// request order. A request that is not multipart carries no files.
func (s *DetectionService) readUploads(r *http.Request) ([]core.Upload, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.maxUploadBytes)

	reader, err := r.MultipartReader()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, CodedErrorf(http.StatusBadRequest, "invalid multipart request: %v", err)
	}

	var uploads []core.Upload
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, uploadReadError(err)
		}

		if part.FormName() != uploadFormField || part.FileName() == "" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, uploadReadError(err)
		}

		uploads = append(uploads, core.Upload{Filename: part.FileName(), Data: data})
	}

	return uploads, nil
}

func pipelineError(err error) error {
	switch {
	case errors.Is(err, core.ErrUnsupportedFormat), errors.Is(err, core.ErrInvalidImage):
		return CodedError(http.StatusUnprocessableEntity, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodedErrorf(http.StatusServiceUnavailable, "request cancelled before the batch finished: %v", err)
	default:
		return CodedErrorf(http.StatusInternalServerError, "error processing images: %v", err)
	}
}

func (s *DetectionService) Detect(r *http.Request) (*FileResponse, any, error) {
	uploads, err := s.readUploads(r)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.pipeline.ProcessBatch(r.Context(), uploads)
	if err != nil {
		if errors.Is(err, core.ErrNoImages) {
			return nil, api.MessageResponse{Message: api.NoImagesMessage}, nil
		}
		return nil, nil, pipelineError(err)
	}

	return &FileResponse{
		Filename:    core.ArchiveFilename,
		ContentType: core.ArchiveContentType,
		Data:        result.Archive,
	}, nil, nil
}

func (s *DetectionService) publishBatchEvent(batch database.Batch) {
	payload := messaging.BatchEventPayload{
		BatchId:    batch.Id,
		Status:     batch.Status,
		ImageCount: batch.ImageCount,
		ArchiveKey: batch.ArchiveKey.String,
		Error:      batch.Error.String,
		Timestamp:  time.Now().UTC(),
	}
	for _, img := range batch.Images {
		payload.RegularHoles += img.RegularCount
		payload.ThreadedHoles += img.ThreadedCount
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := s.publisher.PublishBatchEvent(ctx, payload); err != nil {
		slog.Error("error publishing batch event", "batch_id", batch.Id, "error", err)
	}
}

func (s *DetectionService) recordFailedBatch(ctx context.Context, batchId uuid.UUID, imageCount int, cause error) {
	if err := database.SaveFailedBatch(ctx, s.db, batchId, imageCount, cause.Error()); err != nil {
		return
	}

	batch, err := database.GetBatch(ctx, s.db, batchId)
	if err != nil {
		slog.Error("error loading failed batch", "batch_id", batchId, "error", err)
		return
	}
	s.publishBatchEvent(batch)
}

func (s *DetectionService) CreateBatch(r *http.Request) (any, error) {
	uploads, err := s.readUploads(r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()
	batchId := uuid.New()
	creationTime := time.Now().UTC()

	result, err := s.pipeline.ProcessBatch(ctx, uploads)
	if err != nil {
		if errors.Is(err, core.ErrNoImages) {
			return api.MessageResponse{Message: api.NoImagesMessage}, nil
		}
		slog.Error("batch failed", "batch_id", batchId, "images", len(uploads), "error", err)
		s.recordFailedBatch(context.WithoutCancel(ctx), batchId, len(uploads), err)
		return nil, pipelineError(err)
	}

	archiveKey := core.ArchiveKey(batchId)
	if err := s.storage.PutObject(ctx, s.archiveBucket, archiveKey, bytes.NewReader(result.Archive)); err != nil {
		slog.Error("error storing archive", "batch_id", batchId, "key", archiveKey, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error storing detection archive")
	}

	batch := database.Batch{
		Id:             batchId,
		Status:         database.BatchCompleted,
		CreationTime:   creationTime,
		CompletionTime: sql.NullTime{Time: time.Now().UTC(), Valid: true},
		ImageCount:     len(result.Images),
		ArchiveKey:     sql.NullString{String: archiveKey, Valid: true},
		ArchiveSize:    int64(len(result.Archive)),
	}
	for i, img := range result.Images {
		report, err := core.MarshalReport(img.Report)
		if err != nil {
			return nil, CodedErrorf(http.StatusInternalServerError, "error serializing report for %s: %v", img.Filename, err)
		}
		batch.Images = append(batch.Images, database.BatchImage{
			BatchId:       batchId,
			Position:      i,
			Filename:      img.Filename,
			MemberName:    img.MemberName,
			RegularCount:  img.Report.RegularHolesCount,
			ThreadedCount: img.Report.ThreadedHolesCount,
			DroppedCount:  img.DroppedCount,
			Report:        datatypes.JSON(report),
		})
	}

	if err := database.SaveBatch(ctx, s.db, &batch); err != nil {
		if err := s.storage.DeleteObjects(context.WithoutCancel(ctx), s.archiveBucket, core.ArchivePrefix(batchId)); err != nil {
			slog.Error("error removing archive of unsaved batch", "batch_id", batchId, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error saving batch record")
	}

	s.publishBatchEvent(batch)

	slog.Info("batch completed", "batch_id", batchId, "images", batch.ImageCount, "archive_bytes", batch.ArchiveSize)

	return convertBatch(batch), nil
}

func (s *DetectionService) ListBatches(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListBatchesParams](r)
	if err != nil {
		return nil, err
	}

	if params.Limit < 0 || params.Offset < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "limit and offset must not be negative")
	}
	if params.Limit == 0 {
		params.Limit = defaultBatchLimit
	}
	params.Limit = min(params.Limit, maxBatchLimit)

	batches, err := database.ListBatches(r.Context(), s.db, params.Limit, params.Offset)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing batches")
	}

	return convertBatches(batches), nil
}

func (s *DetectionService) getBatch(r *http.Request) (database.Batch, error) {
	batchId, err := URLParamUUID(r, "batch_id")
	if err != nil {
		return database.Batch{}, err
	}

	batch, err := database.GetBatch(r.Context(), s.db, batchId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Batch{}, CodedErrorf(http.StatusNotFound, "batch %s not found", batchId)
		}
		slog.Error("error getting batch", "batch_id", batchId, "error", err)
		return database.Batch{}, CodedErrorf(http.StatusInternalServerError, "error retrieving batch record")
	}

	return batch, nil
}

func (s *DetectionService) GetBatch(r *http.Request) (any, error) {
	batch, err := s.getBatch(r)
	if err != nil {
		return nil, err
	}
	return convertBatch(batch), nil
}

func (s *DetectionService) GetBatchArchive(r *http.Request) (*FileResponse, any, error) {
	batch, err := s.getBatch(r)
	if err != nil {
		return nil, nil, err
	}

	switch batch.Status {
	case database.BatchExpired:
		return nil, nil, CodedErrorf(http.StatusGone, "archive for batch %s has expired", batch.Id)
	case database.BatchFailed:
		return nil, nil, CodedErrorf(http.StatusNotFound, "batch %s failed and has no archive", batch.Id)
	}

	data, err := s.storage.GetObject(r.Context(), s.archiveBucket, batch.ArchiveKey.String)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, CodedErrorf(http.StatusGone, "archive for batch %s is no longer available", batch.Id)
		}
		slog.Error("error loading archive", "batch_id", batch.Id, "key", batch.ArchiveKey.String, "error", err)
		return nil, nil, CodedErrorf(http.StatusInternalServerError, "error loading detection archive")
	}

	return &FileResponse{
		Filename:    core.ArchiveFilename,
		ContentType: core.ArchiveContentType,
		Data:        data,
	}, nil, nil
}
