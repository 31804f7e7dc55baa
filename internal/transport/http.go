package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"github.com/vasiliy-maslov/movie-checkout/internal/cart"
	"github.com/vasiliy-maslov/movie-checkout/internal/catalog"
	"github.com/vasiliy-maslov/movie-checkout/internal/config"
	"github.com/vasiliy-maslov/movie-checkout/internal/handler"
	"github.com/vasiliy-maslov/movie-checkout/internal/order"
	"github.com/vasiliy-maslov/movie-checkout/internal/payment"
)

func NewRouter(dbConn *sqlx.DB, gatewayCfg config.GatewayConfig, notifier payment.Notifier) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	catalogRepo := catalog.NewPostgresRepository(dbConn)
	catalogSvc := catalog.NewService(catalogRepo)

	cartRepo := cart.NewPostgresRepository(dbConn)
	cartSvc := cart.NewService(cartRepo, catalogSvc)

	gatewayClient := payment.NewClient(gatewayCfg.BaseURL, gatewayCfg.APIKey, gatewayCfg.Timeout)

	orderRepo := order.NewPostgresRepository(dbConn)
	orderSvc := order.NewService(orderRepo, gatewayClient)

	paymentRepo := payment.NewPostgresRepository(dbConn)
	paymentSvc := payment.NewService(paymentRepo, orderSvc, gatewayClient, notifier, gatewayCfg.MaxAmount)

	movieHandler := handler.NewMovieHandler(catalogSvc)
	cartHandler := handler.NewCartHandler(cartSvc)
	orderHandler := handler.NewOrderHandler(orderSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	webhookHandler := handler.NewWebhookHandler(paymentSvc, gatewayCfg.WebhookSecret)

	r.Get("/movies", movieHandler.List)
	r.Get("/movies/{movieID}", movieHandler.GetByID)

	r.Group(func(r chi.Router) {
		r.Use(handler.Auth)

		r.Post("/cart/items", cartHandler.AddItem)
		r.Get("/cart", cartHandler.List)
		r.Delete("/cart/items/{movieID}", cartHandler.RemoveItem)
		r.Delete("/cart", cartHandler.Clear)

		r.Post("/orders", orderHandler.Create)
		r.Get("/orders", orderHandler.List)
		r.Get("/orders/{orderID}", orderHandler.GetByID)
		r.Post("/orders/{orderID}/cancel", orderHandler.Cancel)
		r.Post("/orders/{orderID}/refund", orderHandler.RequestRefund)

		r.Post("/orders/{orderID}/payments", paymentHandler.Start)
		r.Get("/payments", paymentHandler.List)
	})

	r.Post("/webhooks/payment", webhookHandler.Handle)

	return r
}
