package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	MaxFileSize    = 50 * 1024 * 1024
	MaxFilenameLen = 255
	URLExpiry      = time.Hour
)

var AllowedTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xls":  "application/vnd.ms-excel",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

var forbidden = []string{"..", "/", "\\", "<", ">", ":", "\"", "|", "?", "*"}

type Request struct {
	Filename string `json:"filename"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
	UserID   string `json:"userId"`
}

type Grant struct {
	UploadURL   string `json:"uploadUrl"`
	Key         string `json:"key"`
	Bucket      string `json:"bucket"`
	ExpiresIn   int    `json:"expiresIn"`
	MaxFileSize int64  `json:"maxFileSize"`
	ContentType string `json:"contentType"`
}

// Validate returns a message describing the first invalid field, or "".
func (r *Request) Validate() string {
	r.FileType = strings.ToLower(r.FileType)
	if r.Filename == "" {
		return "Filename is required"
	}
	if r.FileType == "" {
		return "File type is required"
	}
	if r.FileSize <= 0 {
		return "Valid file size is required"
	}
	if _, ok := AllowedTypes[r.FileType]; !ok {
		types := make([]string, 0, len(AllowedTypes))
		for t := range AllowedTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		return fmt.Sprintf("File type '%s' not allowed. Allowed types: %s", r.FileType, strings.Join(types, ", "))
	}
	if r.FileSize > MaxFileSize {
		return fmt.Sprintf("File size too large. Maximum allowed: %dMB", MaxFileSize/(1024*1024))
	}
	if len(r.Filename) > MaxFilenameLen {
		return fmt.Sprintf("Filename too long (max %d characters)", MaxFilenameLen)
	}
	for _, s := range forbidden {
		if strings.Contains(r.Filename, s) {
			return "Filename contains invalid characters"
		}
	}
	return ""
}

type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Service struct {
	presigner Presigner
	bucket    string
}

func NewService(presigner Presigner, bucket string) *Service {
	return &Service{presigner: presigner, bucket: bucket}
}

func (s *Service) Grant(ctx context.Context, req Request) (*Grant, error) {
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}
	filename := sanitize(req.Filename)
	if !strings.HasSuffix(strings.ToLower(filename), "."+req.FileType) {
		filename += "." + req.FileType
	}
	key := fmt.Sprintf("uploads/%s/%s-%s", userID, uuid.New(), filename)
	contentType := AllowedTypes[req.FileType]

	presigned, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(req.FileSize),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = URLExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	slog.Info("granted upload", "key", key, "size", req.FileSize)

	return &Grant{
		UploadURL:   presigned.URL,
		Key:         key,
		Bucket:      s.bucket,
		ExpiresIn:   int(URLExpiry.Seconds()),
		MaxFileSize: MaxFileSize,
		ContentType: contentType,
	}, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
