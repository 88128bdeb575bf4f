package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-arena/models"
	"github.com/Dosada05/tournament-arena/storage"
)

// BracketArchiver publishes a snapshot of a finished bracket.
type BracketArchiver interface {
	Archive(ctx context.Context, tournament *models.Tournament) (string, error)
}

type bracketSnapshot struct {
	ArchivedAt time.Time          `json:"archived_at"`
	Tournament *models.Tournament `json:"tournament"`
}

type storageArchiver struct {
	uploader storage.FileUploader
	logger   *slog.Logger
}

// NewBracketArchiver returns an archiver writing to uploader, or a no-op one
// when uploader is nil.
func NewBracketArchiver(uploader storage.FileUploader, logger *slog.Logger) BracketArchiver {
	if uploader == nil {
		return noopArchiver{}
	}
	return &storageArchiver{uploader: uploader, logger: logger}
}

func (a *storageArchiver) Archive(ctx context.Context, tournament *models.Tournament) (string, error) {
	body, err := json.Marshal(bracketSnapshot{ArchivedAt: time.Now().UTC(), Tournament: tournament})
	if err != nil {
		return "", fmt.Errorf("failed to encode bracket snapshot: %w", err)
	}

	key := fmt.Sprintf("brackets/%s.json", tournament.ID)
	result, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	a.logger.Info("bracket archived",
		slog.String("tournament_id", tournament.ID.String()),
		slog.String("location", result.Location))
	return result.Location, nil
}

type noopArchiver struct{}

func (noopArchiver) Archive(context.Context, *models.Tournament) (string, error) { return "", nil }
