package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irt-tools/cat-service/internal/i18n"
	"github.com/irt-tools/cat-service/internal/services"
	"github.com/irt-tools/cat-service/internal/utils"
)

type HandlerManager struct {
	bankHandler       *BankHandler
	studyHandler      *StudyHandler
	sessionHandler    *SessionHandler
	exportHandler     *ExportHandler
	simulationHandler *SimulationHandler
	catalog           *i18n.Catalog
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	catalog *i18n.Catalog,
	validator *utils.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		bankHandler:       NewBankHandler(serviceManager.Bank(), validator, logger),
		studyHandler:      NewStudyHandler(serviceManager.Study(), validator, logger),
		sessionHandler:    NewSessionHandler(serviceManager.Session(), validator, logger),
		exportHandler:     NewExportHandler(serviceManager.Export(), logger),
		simulationHandler: NewSimulationHandler(serviceManager.Simulation(), logger),
		catalog:           catalog,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "cat-service",
		})
	})

	v1 := router.Group("/api/v1")
	{
		// Item bank routes
		banks := v1.Group("/banks")
		{
			banks.POST("", hm.bankHandler.CreateBank)
			banks.GET("", hm.bankHandler.ListBanks)
			banks.GET("/:id", hm.bankHandler.GetBank)
			banks.GET("/:id/items", hm.bankHandler.GetBankWithItems)
			banks.POST("/:id/validate", hm.bankHandler.ValidateBank)
			banks.DELETE("/:id", hm.bankHandler.DeleteBank)
		}

		// Study routes
		studies := v1.Group("/studies")
		{
			studies.POST("", hm.studyHandler.CreateStudy)
			studies.GET("", hm.studyHandler.ListStudies)
			studies.GET("/:id", hm.studyHandler.GetStudy)
			studies.POST("/:id/activate", hm.studyHandler.ActivateStudy)
			studies.POST("/:id/archive", hm.studyHandler.ArchiveStudy)
			studies.GET("/:id/stats", hm.studyHandler.GetStudyStats)

			studies.GET("/:id/sessions", hm.sessionHandler.ListStudySessions)
			studies.GET("/:id/results", hm.exportHandler.GetStudyResults)
			studies.GET("/:id/results/download", hm.exportHandler.DownloadStudyResults)
			studies.POST("/:id/results/archive", hm.exportHandler.ArchiveStudyResults)
		}

		// Session routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/start", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.POST("/:id/answer", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:id/pause", hm.sessionHandler.PauseSession)
			sessions.POST("/:id/resume", hm.sessionHandler.ResumeSession)
			sessions.POST("/:id/abandon", hm.sessionHandler.AbandonSession)
			sessions.GET("/:id/result", hm.exportHandler.GetSessionResult)
		}

		// Simulation routes
		v1.POST("/simulations", hm.simulationHandler.RunSimulation)

		// Locale catalogs for the respondent-facing pages
		v1.GET("/i18n", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"locales": hm.catalog.Locales()})
		})
		v1.GET("/i18n/:locale", func(c *gin.Context) {
			c.JSON(http.StatusOK, hm.catalog.Messages(c.Param("locale")))
		})
	}
}
