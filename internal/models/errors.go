package models

import "errors"

var (
	ErrCollectionNotFound     = errors.New("collection not found")
	ErrEmbeddingModelMismatch = errors.New("collection was built with a different embedding model")
)
