package api

import (
	"hole-detector/internal/database"
	"hole-detector/pkg/api"
)

func convertImage(img database.BatchImage) api.ImageSummary {
	return api.ImageSummary{
		Filename:           img.Filename,
		MemberName:         img.MemberName,
		RegularHolesCount:  img.RegularCount,
		ThreadedHolesCount: img.ThreadedCount,
		DroppedCount:       img.DroppedCount,
	}
}

func convertBatch(b database.Batch) api.Batch {
	batch := api.Batch{
		Id:           b.Id,
		Status:       b.Status,
		CreationTime: b.CreationTime,
		ImageCount:   b.ImageCount,
	}

	if b.CompletionTime.Valid {
		completion := b.CompletionTime.Time
		batch.CompletionTime = &completion
	}
	if b.Status == database.BatchCompleted {
		batch.ArchiveURL = archiveURL(b.Id)
	}
	if b.Error.Valid {
		batch.Error = b.Error.String
	}

	for _, img := range b.Images {
		batch.RegularHolesCount += img.RegularCount
		batch.ThreadedHolesCount += img.ThreadedCount
		batch.Images = append(batch.Images, convertImage(img))
	}

	return batch
}

func convertBatches(bs []database.Batch) []api.Batch {
	batches := make([]api.Batch, 0, len(bs))
	for _, b := range bs {
		batches = append(batches, convertBatch(b))
	}
	return batches
}
