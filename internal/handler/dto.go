package handler

import (
	"encoding/json"
	"time"

	"translation-server/internal/models"
	"translation-server/internal/service"
)

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"` // причина ValidationError, если есть
}

// ChapterRefDTO — ссылка на главу в ответе метаданных.
type ChapterRefDTO struct {
	ID            int     `json:"id"`
	ChapterNumber int     `json:"chapterNumber"`
	Title         string  `json:"title"`
	ContentRef    string  `json:"contentRef"`
	AudioRef      *string `json:"audioRef,omitempty"`
}

// StoryMetadataResponse — ответ GET /api/stories/:story_id/metadata.
// servedLanguage всегда либо равен requestedLanguage, либо fallbackUsed=true:
// молчаливой подмены языка не бывает.
type StoryMetadataResponse struct {
	StoryID           string          `json:"storyId"`
	RequestedLanguage string          `json:"requestedLanguage"`
	ServedLanguage    string          `json:"servedLanguage"`
	FallbackUsed      bool            `json:"fallbackUsed"`
	NeedsResync       bool            `json:"needsResync"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Chapters          []ChapterRefDTO `json:"chapters"`
}

// ChapterContentResponse — ответ GET /api/stories/:story_id/chapters/:chapter_id.
type ChapterContentResponse struct {
	ChapterID         int               `json:"chapterId"`
	ChapterNumber     int               `json:"chapterNumber"`
	Title             string            `json:"title"`
	RequestedLanguage string            `json:"requestedLanguage"`
	ServedLanguage    string            `json:"servedLanguage"`
	FallbackUsed      bool              `json:"fallbackUsed"`
	NeedsResync       bool              `json:"needsResync"`
	Blocks            []json.RawMessage `json:"blocks"`
}

// AssetResponse — ответ GET /api/stories/:story_id/assets/:asset_id.
type AssetResponse struct {
	AssetID     string `json:"assetId"`
	Hash        string `json:"hash"`
	ContentType string `json:"contentType,omitempty"`
}

// TranslationStatusResponse — ответ на POST прогресса: текущее состояние записи.
type TranslationStatusResponse struct {
	StoryID           string    `json:"storyId"`
	Language          string    `json:"language"`
	Status            string    `json:"status"`
	ChaptersCompleted []int     `json:"chaptersCompleted"`
	ChapterCount      int       `json:"chapterCount"`
	WordCount         int       `json:"wordCount"`
	NeedsResync       bool      `json:"needsResync"`
	SyncVersion       int64     `json:"syncVersion"`
	ErrorDetails      *string   `json:"errorDetails,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// SyncResponse — ответ на POST /internal/stories/:story_id/sync.
type SyncResponse struct {
	StoryID         string   `json:"storyId"`
	MarkedLanguages []string `json:"markedLanguages"`
}

func newStoryMetadataResponse(res *service.ResolvedStory) StoryMetadataResponse {
	chapters := make([]ChapterRefDTO, 0, len(res.Manifest.Chapters))
	for _, ref := range res.Manifest.Chapters {
		chapters = append(chapters, ChapterRefDTO{
			ID:            ref.ID,
			ChapterNumber: ref.Number,
			Title:         ref.Title,
			ContentRef:    ref.BlobHash,
			AudioRef:      ref.AudioHash,
		})
	}
	return StoryMetadataResponse{
		StoryID:           res.StoryID.String(),
		RequestedLanguage: res.RequestedLanguage,
		ServedLanguage:    res.ServedLanguage,
		FallbackUsed:      res.FallbackUsed,
		NeedsResync:       res.NeedsResync,
		Title:             res.Manifest.Title,
		Description:       res.Manifest.Description,
		Chapters:          chapters,
	}
}

func newChapterContentResponse(res *service.ResolvedChapter) ChapterContentResponse {
	return ChapterContentResponse{
		ChapterID:         res.Content.ID,
		ChapterNumber:     res.Content.Number,
		Title:             res.Content.Title,
		RequestedLanguage: res.RequestedLanguage,
		ServedLanguage:    res.ServedLanguage,
		FallbackUsed:      res.FallbackUsed,
		NeedsResync:       res.NeedsResync,
		Blocks:            res.Content.Blocks,
	}
}

func newTranslationStatusResponse(t *models.Translation) TranslationStatusResponse {
	return TranslationStatusResponse{
		StoryID:           t.StoryID.String(),
		Language:          t.Language,
		Status:            string(t.Status),
		ChaptersCompleted: t.ChaptersCompleted,
		ChapterCount:      t.ChapterCount,
		WordCount:         t.WordCount,
		NeedsResync:       t.NeedsResync,
		SyncVersion:       t.SyncVersion,
		ErrorDetails:      t.ErrorDetails,
		UpdatedAt:         t.UpdatedAt,
	}
}
