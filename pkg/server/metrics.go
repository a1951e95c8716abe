package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adfharrison1/go-docdb/pkg/storage"
)

var (
	databasesDesc = prometheus.NewDesc(
		"docdb_databases",
		"The number of databases holding at least one collection",
		nil, nil,
	)
	collectionsDesc = prometheus.NewDesc(
		"docdb_collections",
		"The number of collections",
		nil, nil,
	)
	documentsDesc = prometheus.NewDesc(
		"docdb_documents",
		"The number of stored documents",
		nil, nil,
	)
)

// engineCollector samples engine stats at scrape time.
type engineCollector struct {
	engine *storage.Engine
}

func newEngineCollector(engine *storage.Engine) prometheus.Collector {
	return &engineCollector{engine: engine}
}

func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- databasesDesc
	ch <- collectionsDesc
	ch <- documentsDesc
}

func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.engine.Stats()
	ch <- prometheus.MustNewConstMetric(databasesDesc, prometheus.GaugeValue, float64(stats.Databases))
	ch <- prometheus.MustNewConstMetric(collectionsDesc, prometheus.GaugeValue, float64(stats.Collections))
	ch <- prometheus.MustNewConstMetric(documentsDesc, prometheus.GaugeValue, float64(stats.Documents))
}
