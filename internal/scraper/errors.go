package scraper

import (
	"errors"

	"github.com/suPer8Hu/creator-scout/internal/upstream"
)

type UpstreamError = upstream.Error

type Kind = upstream.Kind

const (
	KindNoResponse   = upstream.KindNoResponse
	KindHTTPStatus   = upstream.KindHTTPStatus
	KindRequestSetup = upstream.KindRequestSetup
)

var (
	ErrSnapshotTimeout = errors.New("scraper snapshot wait exceeded ceiling")
	ErrSnapshotFailed  = errors.New("scraper snapshot failed")
	ErrNoDataset       = errors.New("no scraper dataset configured for platform")
)

func KindOf(err error) Kind { return upstream.KindOf(err) }
