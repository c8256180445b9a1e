package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"backoffice/internal/models"
)

// ComputeInputsHash returns the hex SHA-256 of the file bytes followed by
// the portfolio ID and the ISO-8601 as-of date. Two imports with the same
// digest carry the same content for the same portfolio and date.
func ComputeInputsHash(fileBytes []byte, portfolioID string, asOf time.Time) string {
	h := sha256.New()
	h.Write(fileBytes)
	h.Write([]byte(portfolioID))
	h.Write([]byte(asOf.Format(models.DateLayout)))
	return hex.EncodeToString(h.Sum(nil))
}
