package domain

import "time"

type ArticleResultStatus string

const (
	ResultUpserted ArticleResultStatus = "upserted"
	ResultFailed   ArticleResultStatus = "failed"
	ResultSkipped  ArticleResultStatus = "skipped"
)

// ArticleResult describes what happened to one article in a sync run.
type ArticleResult struct {
	Slug              string              `json:"slug"`
	Status            ArticleResultStatus `json:"status"`
	Error             string              `json:"error,omitempty"`
	Translated        []string            `json:"translated,omitempty"`
	TranslationFailed []string            `json:"translationFailed,omitempty"`
}

// SyncSummary holds statistics about a sync operation.
type SyncSummary struct {
	SourceID    string          `json:"sourceId"`
	Success     bool            `json:"success"`
	Error       string          `json:"error,omitempty"`
	NoOp        bool            `json:"noOp"`
	TotalRemote int             `json:"totalRemote"`
	Considered  int             `json:"considered"`
	Upserted    int             `json:"upserted"`
	Failed      int             `json:"failed"`
	Skipped     int             `json:"skipped"`
	Results     []ArticleResult `json:"results"`
	Duration    time.Duration   `json:"duration"`
}

// SyncOptions controls a single sync run.
type SyncOptions struct {
	// Force reprocesses every remote article regardless of updatedAt.
	Force bool
}
