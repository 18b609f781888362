package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"google.golang.org/grpc"

	"github.com/vibast-solutions/ms-go-razorpay/app/controller"
	gatewaygrpc "github.com/vibast-solutions/ms-go-razorpay/app/grpc"
	"github.com/vibast-solutions/ms-go-razorpay/config"
)

const maxRequestBody = "1M"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and, when internal auth is configured, the gRPC server",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApplication()
	defer cleanup()
	cfg := app.cfg

	paymentController := controller.NewPaymentController(app.orderCreator, app.verifier, app.webhooks, app.ledger)

	var (
		internalAuth *authmiddleware.EchoInternalAuthMiddleware
		grpcSrv      *grpc.Server
		lis          net.Listener
	)
	if cfg.InternalEndpoints.AuthGRPCAddr != "" {
		authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
		}
		defer authGRPCClient.Close()

		internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
		internalAuth = authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
		grpcInternalAuth := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

		grpcSrv, lis = setupGRPCServer(cfg, gatewaygrpc.NewServer(app.orderCreator, app.verifier, app.ledger), grpcInternalAuth.UnaryRequireInternalAccess(cfg.App.ServiceName))
	} else {
		logrus.Info("AUTH_SERVICE_GRPC_ADDR is not set; internal HTTP routes and gRPC server disabled")
	}

	var internalMiddleware echo.MiddlewareFunc
	if internalAuth != nil {
		internalMiddleware = internalAuth.RequireInternalAccess(cfg.App.ServiceName)
	}
	e := setupHTTPServer(cfg, app, paymentController, internalMiddleware)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	if grpcSrv != nil {
		go func() {
			logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
			if err := grpcSrv.Serve(lis); err != nil {
				logrus.WithError(err).Fatal("gRPC server error")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	logrus.Info("Server stopped")
}

// setupHTTPServer builds the public checkout API. internalAuth guards the
// /internal routes; when it is nil those routes are not registered.
func setupHTTPServer(
	cfg *config.Config,
	app *application,
	paymentController *controller.PaymentController,
	internalAuth echo.MiddlewareFunc,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.App.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.Use(echomiddleware.BodyLimit(maxRequestBody))

	e.GET("/", paymentController.Root)
	e.GET("/health", paymentController.Health)
	e.GET("/metrics", echo.WrapHandler(app.metrics.Handler()))

	api := e.Group("/api")
	api.POST("/create-order", paymentController.CreateOrder)
	api.POST("/verify-payment", paymentController.VerifyPayment)

	e.POST("/webhooks/razorpay", paymentController.HandleWebhook)

	if internalAuth != nil {
		internal := e.Group("/internal", internalAuth)
		internal.GET("/orders/:orderId", paymentController.GetOrder)
	}

	return e
}

func setupGRPCServer(
	cfg *config.Config,
	gatewayServer *gatewaygrpc.Server,
	internalAuth grpc.UnaryServerInterceptor,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			gatewaygrpc.RecoveryInterceptor(),
			gatewaygrpc.RequestIDInterceptor(),
			gatewaygrpc.LoggingInterceptor(),
			internalAuth,
		),
	)
	gatewaygrpc.RegisterPaymentsGatewayServer(grpcSrv, gatewayServer)

	return grpcSrv, lis
}
