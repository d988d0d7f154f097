package model

import (
	"time"

	"github.com/google/uuid"
)

// ContentType classifies a generated artifact.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
	ContentAudio ContentType = "audio"
	ContentVideo ContentType = "video"
	ContentFile  ContentType = "file"
)

// ValidContentType reports whether t is a known content type.
func ValidContentType(t ContentType) bool {
	switch t {
	case ContentText, ContentImage, ContentAudio, ContentVideo, ContentFile:
		return true
	}
	return false
}

// GeneratedContent is the artifact produced by a completed task.
// Exactly one row exists per task (1:1, enforced by a unique index).
type GeneratedContent struct {
	ID               uuid.UUID      `json:"id"`
	TaskID           uuid.UUID      `json:"task_id"`
	UserID           int64          `json:"user_id"`
	ContentType      ContentType    `json:"content_type"`
	MimeType         *string        `json:"mime_type,omitempty"`
	FileSizeBytes    *int64         `json:"file_size_bytes,omitempty"`
	FileURL          *string        `json:"file_url,omitempty"`
	ThumbnailURL     *string        `json:"thumbnail_url,omitempty"`
	OriginalFilename *string        `json:"original_filename,omitempty"`
	StoragePath      *string        `json:"storage_path,omitempty"`
	StorageProvider  *string        `json:"storage_provider,omitempty"`
	TextContent      *string        `json:"text_content,omitempty"`
	ContentMetadata  map[string]any `json:"content_metadata,omitempty"`
	WidthPx          *int           `json:"width_px,omitempty"`
	HeightPx         *int           `json:"height_px,omitempty"`
	DurationSeconds  *float64       `json:"duration_seconds,omitempty"`
	QualityScore     *float64       `json:"quality_score,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	IsPublic         bool           `json:"is_public"`
	IsFavorite       bool           `json:"is_favorite"`
	DownloadCount    int            `json:"download_count"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsTextContent reports whether the artifact is plain text.
func (g *GeneratedContent) IsTextContent() bool { return g.ContentType == ContentText }

// IsMediaContent reports whether the artifact is image, audio or video.
func (g *GeneratedContent) IsMediaContent() bool {
	switch g.ContentType {
	case ContentImage, ContentAudio, ContentVideo:
		return true
	}
	return false
}

// HasFile reports whether a stored file backs the artifact.
func (g *GeneratedContent) HasFile() bool {
	return g.FileURL != nil && *g.FileURL != ""
}

// HasThumbnail reports whether a thumbnail is available.
func (g *GeneratedContent) HasThumbnail() bool {
	return g.ThumbnailURL != nil && *g.ThumbnailURL != ""
}

// IsExpired reports whether the artifact passed its retention date.
func (g *GeneratedContent) IsExpired() bool {
	if g.ExpiresAt == nil {
		return false
	}
	return time.Now().UTC().After(*g.ExpiresAt)
}

// FileSizeMB returns the file size in megabytes, or nil when unknown.
func (g *GeneratedContent) FileSizeMB() *float64 {
	if g.FileSizeBytes == nil {
		return nil
	}
	mb := float64(*g.FileSizeBytes) / 1024 / 1024
	return &mb
}

// MarkFavorite flags the artifact as a favorite.
func (g *GeneratedContent) MarkFavorite() { g.IsFavorite = true }

// UnmarkFavorite clears the favorite flag.
func (g *GeneratedContent) UnmarkFavorite() { g.IsFavorite = false }

// MakePublic exposes the artifact publicly.
func (g *GeneratedContent) MakePublic() { g.IsPublic = true }

// MakePrivate hides the artifact.
func (g *GeneratedContent) MakePrivate() { g.IsPublic = false }

// IncrementDownloads bumps the download counter.
func (g *GeneratedContent) IncrementDownloads() { g.DownloadCount++ }

// SetExpiration sets the retention date to now plus the given days.
func (g *GeneratedContent) SetExpiration(days int) {
	t := time.Now().UTC().AddDate(0, 0, days)
	g.ExpiresAt = &t
}

// AddTag appends a tag if not already present.
func (g *GeneratedContent) AddTag(tag string) {
	for _, t := range g.Tags {
		if t == tag {
			return
		}
	}
	g.Tags = append(g.Tags, tag)
}

// RemoveTag deletes a tag if present.
func (g *GeneratedContent) RemoveTag(tag string) {
	for i, t := range g.Tags {
		if t == tag {
			g.Tags = append(g.Tags[:i], g.Tags[i+1:]...)
			return
		}
	}
}
