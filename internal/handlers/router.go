package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"property-marketplace/internal/admin"
	"property-marketplace/internal/appointment"
	"property-marketplace/internal/approval"
	"property-marketplace/internal/auth"
	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
	"property-marketplace/internal/directory"
	"property-marketplace/internal/importer"
	"property-marketplace/internal/metrics"
	"property-marketplace/internal/ratelimit"
	"property-marketplace/internal/search"
	"property-marketplace/internal/storage"
	"property-marketplace/internal/submission"
	"property-marketplace/internal/tokens"
)

// Deps are the services the API is built from
type Deps struct {
	Config       *config.Config
	Store        database.Store
	Auth         *auth.Service
	Admin        *admin.Service
	Submission   *submission.Service
	Approval     *approval.Service
	Search       *search.Service
	Ledger       *tokens.Ledger
	Quota        *ratelimit.SubmissionQuota
	Appointments *appointment.Service
	Directory    *directory.Service
	Cleanup      *cleanup.Service
	Images       storage.ImageStore
	Importer     *importer.Importer
	AuthLimiter  *ratelimit.ClientLimiter // optional
}

// NewRouter wires every route onto a gin engine
func NewRouter(d Deps) *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	if d.Config.Logging.LogRequests {
		r.Use(RequestLogger())
	}
	r.Use(metrics.Middleware())
	corsConfig := cors.Config{
		AllowOrigins:     d.Config.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))
	r.MaxMultipartMemory = d.Config.Storage.S3.MaxUploadBytes()

	properties := NewPropertyHandler(d.Store, d.Search, d.Submission, d.Admin)
	searchH := NewSearchHandler(d.Search)
	authH := NewAuthHandler(d.Auth)
	adminH := NewAdminHandler(d.Admin, d.Approval, d.Cleanup, d.Search, d.Config.Cleanup)
	tokensH := NewTokenHandler(d.Ledger, d.Submission.Policy(), d.Quota)
	appointments := NewAppointmentHandler(d.Appointments)
	dir := NewDirectoryHandler(d.Directory)
	uploads := NewUploadHandler(d.Images)
	imports := NewImportHandler(d.Importer)

	requireAuth := AuthMiddleware(d.Auth)
	optionalAuth := OptionalAuth(d.Auth)
	requireAdmin := AdminMiddleware(d.Admin)

	r.GET("/health", healthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	// Public reads
	api.GET("/properties", optionalAuth, properties.List)
	api.GET("/properties/:id", optionalAuth, properties.Get)
	api.GET("/properties/:id/history", optionalAuth, properties.History)
	api.GET("/search", searchH.Search)
	api.GET("/search/facets", searchH.Facets)
	api.GET("/tokens/rewards", tokensH.Rewards)
	api.GET("/directory/agents", dir.Agents)
	api.GET("/directory/companies", dir.Companies)
	api.GET("/directory/buyers-sellers", dir.BuyersSellers)

	authGroup := api.Group("/auth")
	if d.AuthLimiter != nil {
		authGroup.Use(d.AuthLimiter.Limit())
	}
	{
		authGroup.POST("/signup", authH.SignUp)
		authGroup.POST("/signin", authH.SignIn)
		authGroup.POST("/forgot-password", authH.ForgotPassword)
		authGroup.POST("/reset-password", authH.ResetPassword)
		authGroup.GET("/me", requireAuth, authH.Me)
	}

	// Signed-in users
	user := api.Group("", requireAuth)
	{
		user.GET("/profile", dir.GetProfile)
		user.PUT("/profile", dir.UpdateProfile)

		user.POST("/properties", properties.Submit)
		user.PUT("/properties/:id", properties.Update)
		user.GET("/me/properties", properties.MyProperties)
		user.GET("/me/submissions", properties.MySubmissions)

		user.GET("/tokens/balance", tokensH.Balance)
		user.POST("/uploads", uploads.Upload)
		user.POST("/import", imports.Import)

		user.POST("/appointments", appointments.Book)
		user.GET("/appointments", appointments.List)
		user.POST("/appointments/:id/confirm", appointments.Confirm)
		user.POST("/appointments/:id/cancel", appointments.Cancel)

		user.GET("/admin/status", adminH.GetStatus)
		user.POST("/admin/applications", adminH.Apply)
	}

	// Admin routes
	adminGroup := api.Group("/admin", requireAuth, requireAdmin)
	{
		adminGroup.GET("/submissions", adminH.GetPendingSubmissions)
		adminGroup.POST("/properties/:id/approve", adminH.ApproveProperty)
		adminGroup.POST("/properties/:id/reject", adminH.RejectProperty)
		adminGroup.GET("/applications", adminH.GetApplications)
		adminGroup.POST("/applications/:id/approve", adminH.ApproveApplication)
		adminGroup.POST("/applications/:id/reject", adminH.RejectApplication)
		adminGroup.POST("/users/:id/tokens", adminH.GrantTokens)
		adminGroup.GET("/stats", adminH.GetStats)
		adminGroup.POST("/reconcile", adminH.RunReconcile)
		adminGroup.POST("/cleanup/run", adminH.RunCleanup)
		adminGroup.GET("/cleanup/logs", adminH.GetDeleteLogs)
		adminGroup.POST("/search/reindex", adminH.Reindex)
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}
