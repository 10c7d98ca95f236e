//go:build integration

package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"hole-detector/internal/api"
	"hole-detector/internal/core"
	"hole-detector/internal/core/types"
	"hole-detector/internal/database"
	"hole-detector/internal/messaging"
	pkgapi "hole-detector/pkg/api"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadBatch(t *testing.T, router http.Handler, files map[string][]byte, order []string) pkgapi.Batch {
	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)

	for _, name := range order {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var batch pkgapi.Batch
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &batch))
	return batch
}

func TestBatchWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := createDB(t)
	provider := setupS3Provider(t, ctx)
	publisher, reciever := setupRabbitMQContainer(t, ctx)

	detector := &fixedDetector{detections: []types.Detection{
		{Class: types.RegularHole, Box: types.Box{1, 1, 5, 5}, Confidence: 0.9},
		{Class: types.RegularHole, Box: types.Box{10, 1, 15, 5}, Confidence: 0.8},
		{Class: types.RegularHole, Box: types.Box{20, 1, 25, 5}, Confidence: 0.7},
		{Class: types.ThreadedHole, Box: types.Box{30, 10, 40, 20}, Confidence: 0.6},
	}}

	service := api.NewDetectionService(db, provider, publisher, core.NewPipeline(detector, core.DefaultConfidenceThreshold), bucketName, 10<<20)
	router := chi.NewRouter()
	service.AddRoutes(router)

	batch := uploadBatch(t, router, map[string][]byte{
		"plate1.jpg": plateImage(t, imaging.JPEG),
		"plate2.png": plateImage(t, imaging.PNG),
	}, []string{"plate1.jpg", "plate2.png"})

	assert.Equal(t, database.BatchCompleted, batch.Status)
	assert.Equal(t, 6, batch.RegularHolesCount)
	assert.Equal(t, 2, batch.ThreadedHolesCount)

	select {
	case task := <-reciever.Tasks():
		event, err := messaging.DecodeBatchEvent(task)
		require.NoError(t, err)
		assert.Equal(t, batch.Id, event.BatchId)
		require.NoError(t, task.Ack())
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for batch event")
	}

	req := httptest.NewRequest(http.MethodGet, batch.ArchiveURL, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"plate1_detection.json", "plate2_detection.json"}, names)

	janitor := core.NewArchiveJanitor(db, provider, bucketName, time.Minute)
	expired, err := janitor.Sweep(ctx, time.Now().UTC().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, batch.ArchiveURL, nil))
	assert.Equal(t, http.StatusGone, rr.Code)
}
