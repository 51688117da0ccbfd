package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/card-vault/internal/api/handlers"
	"github.com/codyseavey/card-vault/internal/config"
	"github.com/codyseavey/card-vault/internal/services"
)

// Services bundles what the router wires into handlers. PriceWorker and
// SnapshotService may be nil.
type Services struct {
	Collection   *services.CollectionService
	DisplayCases *services.DisplayCaseService
	Market       *services.MarketService
	PriceWorker  *services.PriceWorker
	Snapshots    *services.SnapshotService
	Images       *services.ImageStorageService
}

func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	router := gin.Default()

	serveFrontend := cfg.FrontendDistPath != "" && dirExists(cfg.FrontendDistPath)

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", UserIDHeader}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))
	router.Use(requestMetrics())

	collectionHandler := handlers.NewCollectionHandler(svc.Collection, svc.DisplayCases, svc.Snapshots)
	displayCaseHandler := handlers.NewDisplayCaseHandler(svc.DisplayCases)
	marketHandler := handlers.NewMarketHandler(svc.Market)
	priceHandler := handlers.NewPriceHandler(svc.PriceWorker, svc.Collection)

	// Serve card photos
	if svc.Images != nil {
		router.Static(strings.TrimSuffix(services.PhotoURLPrefix, "/"), svc.Images.GetStorageDir())
	}

	api := router.Group("/api")
	api.Use(userScope())
	{
		collection := api.Group("/collection")
		{
			collection.GET("", collectionHandler.GetCollection)
			collection.POST("", collectionHandler.AddToCollection)
			collection.GET("/stats", collectionHandler.GetStats)
			collection.GET("/history", collectionHandler.GetValueHistory)
			collection.GET("/export", collectionHandler.ExportCollection)
			collection.GET("/:id", collectionHandler.GetCollectionItem)
			collection.PUT("/:id", collectionHandler.UpdateCollectionItem)
			collection.DELETE("/:id", collectionHandler.DeleteCollectionItem)
			collection.POST("/:id/photo", collectionHandler.UploadPhoto)
		}

		api.GET("/tags", displayCaseHandler.ListTags)
		api.GET("/tags/suggest", displayCaseHandler.SuggestTags)

		displayCases := api.Group("/display-cases")
		{
			displayCases.GET("", displayCaseHandler.ListDisplayCases)
			displayCases.POST("", displayCaseHandler.CreateDisplayCase)
			displayCases.POST("/simple", displayCaseHandler.CreateSimpleDisplayCase)
			displayCases.POST("/preview", displayCaseHandler.PreviewDisplayCase)
			displayCases.GET("/:name", displayCaseHandler.GetDisplayCase)
			displayCases.PUT("/:name", displayCaseHandler.UpdateDisplayCase)
			displayCases.DELETE("/:name", displayCaseHandler.DeleteDisplayCase)
			displayCases.POST("/:name/refresh", displayCaseHandler.RefreshDisplayCase)
			displayCases.GET("/:name/share", displayCaseHandler.ShareDisplayCase)
		}

		api.GET("/share/:token", displayCaseHandler.GetSharedDisplayCase)

		market := api.Group("/market")
		{
			market.GET("/search", marketHandler.SearchSales)
			market.POST("/analyze", marketHandler.AnalyzeMarket)
			market.POST("/forecast", marketHandler.ForecastPrice)
		}

		api.POST("/trades/analyze", marketHandler.AnalyzeTrade)

		prices := api.Group("/prices")
		{
			prices.GET("/status", priceHandler.GetPriceStatus)
			prices.POST("/refresh/:id", priceHandler.RefreshCardPrice)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if serveFrontend {
		indexPath := filepath.Join(cfg.FrontendDistPath, "index.html")

		router.Static("/assets", filepath.Join(cfg.FrontendDistPath, "assets"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
