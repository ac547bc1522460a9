package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sei-platform/seibackend/aggregate"
	"github.com/sei-platform/seibackend/config"
	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/handlers"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/media"
	"github.com/sei-platform/seibackend/metrics"
	"github.com/sei-platform/seibackend/ocr"
	"github.com/sei-platform/seibackend/realtime"
	"github.com/sei-platform/seibackend/repository"
	"github.com/sei-platform/seibackend/search"
)

// Images is the background queue for thumbnail generation and asset cleanup.
type Images interface {
	handlers.ImageQueue
	handlers.AssetRemover
}

// Deps are the long-lived services the HTTP surface is built from.
type Deps struct {
	Config    config.Config
	DB        *database.DB
	Processor *media.Processor
	Images    Images
	Hub       *realtime.Hub
	Metrics   *metrics.Metrics
	OCR       ocr.Extractor
	Log       *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	store := d.DB.Store()
	users := repository.NewGormUserRepository(d.DB.Gorm)
	tokens := handlers.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	scorer := aggregate.WeightedScorer{UpThreshold: cfg.ActivityUpThreshold, StableThreshold: cfg.ActivityStableThreshold}
	aggregator := aggregate.New(scorer, cfg.KeywordLimit)

	authHandler := &handlers.AuthHandler{Users: users, Store: store, Tokens: tokens, Log: d.Log}
	setupHandler := &handlers.SetupHandler{DB: d.DB.Gorm, Log: d.Log}
	camposHandler := &handlers.CamposHandler{Source: store, Aggregator: aggregator, Metrics: d.Metrics, Log: d.Log}
	searchHandler := &handlers.SearchHandler{
		Searcher: search.NewSearcher(store, cfg.DemoPublications),
		Store:    store,
		Demo:     cfg.DemoPublications,
		Metrics:  d.Metrics,
		Log:      d.Log,
	}
	directoryHandler := &handlers.DirectoryHandler{Store: store, Metrics: d.Metrics, Log: d.Log}
	classificationHandler := &handlers.ClassificationHandler{}
	institutionHandler := &handlers.InstitutionHandler{
		Store:          store,
		Processor:      d.Processor,
		Images:         d.Images,
		Events:         d.Hub,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            d.Log,
	}
	registrationHandler := &handlers.RegistrationHandler{
		Store:          store,
		Processor:      d.Processor,
		Assets:         d.Images,
		OCR:            d.OCR,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            d.Log,
	}
	connectionHandler := &handlers.ConnectionHandler{
		Store:       store,
		Connections: repository.NewGormConnectionRepository(d.DB.Gorm),
		Events:      d.Hub,
		Log:         d.Log,
	}
	messageHandler := &handlers.MessageHandler{
		Store:    store,
		Messages: repository.NewGormMessageRepository(d.DB.Gorm),
		Events:   d.Hub,
		Log:      d.Log,
	}
	wsHandler := &handlers.WSHandler{Store: store, Hub: d.Hub, Log: d.Log}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	requireAuth := handlers.AuthMiddleware(users, tokens)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handlers.RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)
	r.Use(d.Metrics.Middleware)

	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		// long-lived, kept out of the request timeout
		r.With(requireAuth).Get("/ws", wsHandler.ServeWS)

		r.Group(func(r chi.Router) {
			if cfg.RequestTimeout > 0 {
				r.Use(middleware.Timeout(cfg.RequestTimeout))
			}

			r.Post("/setup", setupHandler.CreateFirstAdmin)

			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", authHandler.Login)
				r.Post("/registro", authHandler.Signup)
				r.With(requireAuth).Get("/me", authHandler.CurrentUser)
			})

			r.Get("/campos", camposHandler.ListCampos)
			r.Get("/campos/{slug}", camposHandler.GetCampo)
			r.Get("/search", searchHandler.Search)
			r.Get("/publicaciones", searchHandler.ListPublications)
			r.Get("/publicaciones/{id}/autores", searchHandler.PublicationAuthors)
			r.Get("/investigadores", directoryHandler.ListResearchers)
			r.Get("/investigadores/{id}", directoryHandler.GetResearcher)
			r.Get("/estadisticas/instituciones", camposHandler.InstitutionStats)
			r.Get("/clasificaciones", classificationHandler.ListClassifications)

			r.Route("/instituciones", func(r chi.Router) {
				r.Get("/", institutionHandler.ListInstitutions)
				r.With(requireAuth).Post("/", institutionHandler.CreateInstitution)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", institutionHandler.GetInstitution)
					r.With(requireAuth, handlers.RequireAdmin).Put("/", institutionHandler.UpdateInstitution)
					r.With(requireAuth, handlers.RequireAdmin).Delete("/", institutionHandler.DeleteInstitution)
				})
			})

			r.Route("/registros", func(r chi.Router) {
				r.Use(requireAuth)
				r.With(handlers.RequireAdmin).Get("/", registrationHandler.ListRegistrations)
				r.Post("/", registrationHandler.CreateRegistration)
				r.Post("/ocr", registrationHandler.ExtractDocument)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", registrationHandler.GetRegistration)
					r.Put("/", registrationHandler.UpdateRegistration)
					r.With(handlers.RequireAdmin).Delete("/", registrationHandler.DeleteRegistration)
					r.Post("/cv", registrationHandler.UploadCV)
				})
			})

			r.Route("/conexiones", func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", connectionHandler.ListConnections)
				r.Post("/", connectionHandler.RequestConnection)
				r.Put("/{id}", connectionHandler.AnswerConnection)
				r.Delete("/{id}", connectionHandler.DeleteConnection)
			})

			r.Route("/mensajes", func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", messageHandler.ListMessages)
				r.Post("/", messageHandler.SendMessage)
				r.Put("/{id}/leido", messageHandler.MarkRead)
				r.Delete("/{id}", messageHandler.DeleteMessage)
			})

			r.Get("/media/*", handlers.AssetServer(d.Processor.Store(), d.Log))
		})
	})

	return r
}
