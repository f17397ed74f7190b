package services

import (
	"time"

	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
)

var _ driven.Metrics = nopMetrics{}

// nopMetrics discards observations. Ingest and search services share it
// when no Metrics adapter is configured.
type nopMetrics struct{}

func (nopMetrics) ChunkEncoded(bool, time.Duration) {}
func (nopMetrics) BatchIndexed(int, bool)           {}
func (nopMetrics) Progress(string, int, int)        {}
func (nopMetrics) RunFinished(bool, time.Duration)  {}
func (nopMetrics) SearchServed(bool, bool)          {}
