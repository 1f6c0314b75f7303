// Package uploads issues presigned S3 PUT URLs so browsers can send PDFs
// straight to the bucket. The resulting key is later registered through
// POST /documents/from-s3.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docsign-backend/internal/shared/server/middleware"
	"docsign-backend/internal/shared/server/respond"
	"docsign-backend/internal/shared/telemetry"
	"docsign-backend/internal/shared/util"
)

const (
	ticketTTL      = 15 * time.Minute
	defaultRegion  = "us-east-1"
	pdfContentType = "application/pdf"

	// KeyPrefix is where presigned uploads land, relative to the object store root.
	KeyPrefix = "uploads/"
)

// ErrRejected wraps every request-validation failure.
var ErrRejected = errors.New("upload rejected")

// Presigner is satisfied by *s3.PresignClient.
type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Issuer mints upload tickets scoped to one owner's key prefix.
type Issuer struct {
	presign      Presigner
	bucket       string
	objectPrefix string
	maxBytes     int64
	now          func() time.Time
}

// Request describes the file a client intends to upload.
type Request struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// Ticket is a presigned PUT the client must use before it expires.
type Ticket struct {
	UploadURL        string            `json:"uploadUrl"`
	S3Key            string            `json:"s3Key"`
	Headers          map[string]string `json:"headers"`
	ExpiresInSeconds int64             `json:"expiresInSeconds"`
	ExpiresAt        time.Time         `json:"expiresAt"`
}

// NewIssuer builds an issuer for bucket. objectPrefix is the store's
// S3_PREFIX; ticket keys are relative to it so the object store can open
// them directly.
func NewIssuer(ctx context.Context, region, bucket, objectPrefix string, maxBytes int64) (*Issuer, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("uploads bucket is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewIssuerWithPresigner(s3.NewPresignClient(s3.NewFromConfig(cfg)), bucket, objectPrefix, maxBytes), nil
}

// NewIssuerWithPresigner wraps an existing presigner.
func NewIssuerWithPresigner(p Presigner, bucket, objectPrefix string, maxBytes int64) *Issuer {
	return &Issuer{
		presign:      p,
		bucket:       bucket,
		objectPrefix: strings.Trim(strings.TrimSpace(objectPrefix), "/"),
		maxBytes:     maxBytes,
		now:          time.Now,
	}
}

// OwnerPrefix is the storage key prefix reserved for one owner's uploads.
func OwnerPrefix(ownerID string) string {
	return KeyPrefix + util.HashUserKey(ownerID) + "/"
}

// Issue validates req and presigns a PUT under the owner's prefix.
func (i *Issuer) Issue(ctx context.Context, ownerID string, req Request) (Ticket, error) {
	name, err := i.validate(req)
	if err != nil {
		return Ticket{}, err
	}
	key := OwnerPrefix(ownerID) + uuid.NewString() + "-" + name
	objectKey := key
	if i.objectPrefix != "" {
		objectKey = path.Join(i.objectPrefix, key)
	}

	out, err := i.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(i.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(pdfContentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ticketTTL
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("presign %s: %w", objectKey, err)
	}
	return Ticket{
		UploadURL:        out.URL,
		S3Key:            key,
		Headers:          map[string]string{"Content-Type": pdfContentType},
		ExpiresInSeconds: int64(ticketTTL.Seconds()),
		ExpiresAt:        i.now().Add(ticketTTL).UTC(),
	}, nil
}

func (i *Issuer) validate(req Request) (string, error) {
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		return "", fmt.Errorf("%w: fileName is required", ErrRejected)
	}
	if !strings.EqualFold(strings.TrimSpace(req.ContentType), pdfContentType) {
		return "", fmt.Errorf("%w: only PDF uploads are allowed", ErrRejected)
	}
	if req.SizeBytes <= 0 || (i.maxBytes > 0 && req.SizeBytes > i.maxBytes) {
		return "", fmt.Errorf("%w: sizeBytes must be between 1 and %d", ErrRejected, i.maxBytes)
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("%w: invalid fileName", ErrRejected)
	}
	return name, nil
}

// Handler exposes the issuer over HTTP.
type Handler struct {
	Issuer *Issuer
}

// NewHandler builds an issuer and wraps it for HTTP.
func NewHandler(ctx context.Context, region, bucket, objectPrefix string, maxBytes int64) (*Handler, error) {
	issuer, err := NewIssuer(ctx, region, bucket, objectPrefix, maxBytes)
	if err != nil {
		return nil, err
	}
	return &Handler{Issuer: issuer}, nil
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presign)
}

func (h *Handler) presign(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	ticket, err := h.Issuer.Issue(c.Request.Context(), middleware.UserIDFromContext(c), req)
	switch {
	case errors.Is(err, ErrRejected):
		respond.Error(c, http.StatusBadRequest, "validation_error", strings.TrimPrefix(err.Error(), ErrRejected.Error()+": "), nil)
	case err != nil:
		telemetry.Error("uploads.presign.failed", telemetry.Fields(c.Request.Context(), telemetry.Err(map[string]any{
			"bucket":     h.Issuer.bucket,
			"size_bytes": req.SizeBytes,
		}, err)))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
	default:
		respond.OK(c, ticket)
	}
}
