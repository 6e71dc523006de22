package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// correlationPrefix marks correlation ids derived from local run ids so they
// are recognizable in remote-side logs.
const correlationPrefix = "relay-"

// DeriveIdempotencyKey builds a deterministic idempotency key from the
// operation kind, the reporting identity and the operation's stable fields.
// Replaying the same logical operation always yields the same key, so the
// remote side can de-duplicate repeated submissions.
func DeriveIdempotencyKey(kind string, rctx ReportingContext, stableFields ...string) string {
	ref, _ := rctx.EffectiveRunRef()
	parts := append([]string{kind, rctx.InitiativeID, ref}, stableFields...)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:32]
}

// CorrelationFromRunID derives a stable correlation id by hashing a local
// run id. Converts a potential "unknown run" rejection into a deterministic,
// idempotent correlation-based create.
func CorrelationFromRunID(runID string) string {
	sum := sha256.Sum256([]byte(runID))
	return correlationPrefix + hex.EncodeToString(sum[:])[:16]
}
