package repositories

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"example.com/autoparts/backoffice/internal/models"

	"github.com/pkg/errors"
)

const firstNoteCode = "NE-0001"

var noteCodePattern = regexp.MustCompile(`^NE-(\d+)$`)

// NextDeliveryNoteCode produces the next sequential delivery note code by
// reading the highest existing code and incrementing it. Falls back to
// NE-0001 when no prior notes exist or the stored code doesn't match the
// expected pattern.
func (s *GormStore) NextDeliveryNoteCode(ctx context.Context) (string, error) {
	var codes []string
	err := s.readOnlyDB.WithContext(ctx).
		Model(&models.DeliveryNote{}).
		Where("code LIKE ?", "NE-%").
		Order("LENGTH(code) DESC, code DESC").
		Limit(1).
		Pluck("code", &codes).Error
	if err != nil {
		return "", errors.Wrap(err, "failed to read latest delivery note code")
	}

	if len(codes) == 0 {
		return firstNoteCode, nil
	}

	return nextNoteCode(codes[0]), nil
}

// nextNoteCode increments a NE-%04d code, falling back to the first code when
// the input doesn't match the pattern.
func nextNoteCode(last string) string {
	match := noteCodePattern.FindStringSubmatch(last)
	if match == nil {
		return firstNoteCode
	}

	seq, err := strconv.Atoi(match[1])
	if err != nil {
		return firstNoteCode
	}

	return fmt.Sprintf("NE-%04d", seq+1)
}
