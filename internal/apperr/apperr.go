// Package apperr defines the typed failures that cross component boundaries.
// Per-article and per-cluster kinds are recorded and skipped; collector and
// store kinds abort the enclosing operation.
package apperr

import (
	"errors"
	"fmt"
)

// CollectionError means the upstream collector could not deliver articles.
type CollectionError struct {
	Source string
	Err    error
}

func (e *CollectionError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("collection failed: %v", e.Err)
	}
	return fmt.Sprintf("collection from %s failed: %v", e.Source, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// EmbeddingError is scoped to a single article.
type EmbeddingError struct {
	ArticleID string
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding article %s: %v", e.ArticleID, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// ScoringError covers judge transport failures, timeouts and invalid results.
type ScoringError struct {
	ClusterID string
	Reason    string
	Err       error
}

func (e *ScoringError) Error() string {
	msg := fmt.Sprintf("scoring cluster %s", e.ClusterID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScoringError) Unwrap() error { return e.Err }

// ResearchError means deep research failed; the story keeps its plain draft.
type ResearchError struct {
	Query string
	Err   error
}

func (e *ResearchError) Error() string {
	return fmt.Sprintf("deep research failed: %v", e.Err)
}

func (e *ResearchError) Unwrap() error { return e.Err }

// PersistenceError wraps failures of the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError marks caller input that was rejected before any work started.
type ValidationError struct {
	Err error
}

func (e ValidationError) Error() string { return e.Err.Error() }

func (e ValidationError) Unwrap() error { return e.Err }

func IsCollection(err error) bool {
	var target *CollectionError
	return errors.As(err, &target)
}

func IsEmbedding(err error) bool {
	var target *EmbeddingError
	return errors.As(err, &target)
}

func IsScoring(err error) bool {
	var target *ScoringError
	return errors.As(err, &target)
}

func IsResearch(err error) bool {
	var target *ResearchError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}
