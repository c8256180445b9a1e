package handlers

import "github.com/gin-gonic/gin"

// Routes groups the handlers mounted under /api/v1.
type Routes struct {
	Portfolios  *PortfolioHandler
	Instruments *InstrumentHandler
	Imports     *ImportHandler
	FX          *FXHandler
}

// Register mounts the tenant routes behind tenantAuth and the pipeline
// routes behind pipelineAuth.
func (r *Routes) Register(v1 *gin.RouterGroup, tenantAuth, pipelineAuth gin.HandlerFunc) {
	protected := v1.Group("/")
	protected.Use(tenantAuth)

	portfolios := protected.Group("/portfolios")
	portfolios.POST("", r.Portfolios.CreatePortfolio)
	portfolios.GET("", r.Portfolios.ListPortfolios)
	portfolios.GET("/:id", r.Portfolios.GetPortfolio)
	portfolios.GET("/:id/snapshots", r.Portfolios.ListSnapshots)
	portfolios.POST("/:id/imports", r.Imports.UploadImport)

	instruments := protected.Group("/instruments")
	instruments.POST("", r.Instruments.CreateInstrument)
	instruments.GET("", r.Instruments.ListInstruments)
	instruments.GET("/:id", r.Instruments.GetInstrument)
	instruments.POST("/:id/prices", r.Instruments.RecordPrices)

	imports := protected.Group("/imports")
	imports.GET("/:id", r.Imports.GetImport)
	imports.POST("/:id/run", r.Imports.RunImport)
	imports.GET("/:id/errors", r.Imports.ListErrors)
	imports.GET("/:id/preflight", r.Imports.Preflight)
	imports.GET("/:id/missing-instruments.csv", r.Imports.ExportMissingInstruments)

	pipeline := v1.Group("/pipeline")
	pipeline.Use(pipelineAuth)
	pipeline.POST("/fx-rates/sync", r.FX.SyncFXRates)
}
