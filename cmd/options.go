package main

import (
	"time"

	"github.com/sells-group/greenspace/internal/config"
	"github.com/sells-group/greenspace/internal/fetcher"
	"github.com/sells-group/greenspace/internal/pipeline"
	"github.com/sells-group/greenspace/internal/server"
)

func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    c.Geometry.UserAgent,
		Timeout:      time.Duration(c.Geometry.TimeoutSecs) * time.Second,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
}

func coverageOptions(c *config.Config) pipeline.CoverageOptions {
	var delim rune = ';'
	if r := []rune(c.Greenery.Delimiter); len(r) == 1 {
		delim = r[0]
	}
	return pipeline.CoverageOptions{
		Delimiter:    delim,
		Decimal:      c.Greenery.Decimal,
		Encoding:     c.Greenery.Encoding,
		KeyColumn:    c.Greenery.KeyColumn,
		TreesColumn:  c.Greenery.TreesColumn,
		BushesColumn: c.Greenery.BushesColumn,
		GrassColumn:  c.Greenery.GrassColumn,
	}
}

func headerOptions(c *config.Config) pipeline.HeaderOptions {
	return pipeline.HeaderOptions{
		PreferredRow:   c.CBS.PreferredHeaderRow,
		ScanRows:       c.CBS.ScanRows,
		StructuralRows: c.CBS.StructuralRows,
		MinColumns:     c.CBS.MinColumns,
	}
}

func serverOptions(c *config.Config) server.Options {
	return server.Options{
		StaticDir:      c.Server.StaticDir,
		IndexFile:      c.Server.IndexFile,
		AllowedOrigins: c.Server.AllowedOrigins,
		DataSource:     c.Server.DataSource,
		DateGenerated:  c.Server.DateGenerated,
	}
}
