package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID   string    `json:"documentId"`
	OwnerID      string    `json:"ownerId"`
	FileName     string    `json:"fileName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	PageCount    int       `json:"pageCount"`
	Status       Status    `json:"status"`
	Message      string    `json:"message,omitempty"`
	Downloadable bool      `json:"downloadable"`
	UploadedAt   time.Time `json:"uploadedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ListResponse struct {
	Items  []DocumentResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func ToResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:   doc.ID,
		OwnerID:      doc.OwnerID,
		FileName:     doc.FileName,
		MimeType:     doc.MimeType,
		SizeBytes:    doc.SizeBytes,
		PageCount:    doc.PageCount,
		Status:       doc.Status,
		Message:      doc.Message,
		Downloadable: doc.Downloadable,
		UploadedAt:   doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

func toListResponse(docs []Document, total int, q ListQuery) ListResponse {
	items := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		items = append(items, ToResponse(doc))
	}
	return ListResponse{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset}
}
