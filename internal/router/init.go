package router

import (
	"github.com/lumenshop/storefront/internal/application"
	"github.com/lumenshop/storefront/internal/container"
	pginfra "github.com/lumenshop/storefront/internal/infrastructure/postgres"
	handlers "github.com/lumenshop/storefront/internal/interface/http"
	"github.com/lumenshop/storefront/internal/router/modules"
)

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	jwt := container.GetJWT()
	rdb := container.GetRedis()

	userRepo := pginfra.NewUserRepository(container.GetPGPool())
	cartRepo := pginfra.NewCartRepository(container.GetPGPool())

	authSvc := application.NewAuthService(userRepo, jwt, rdb, logger)
	cartSvc := application.NewCartService(cartRepo, rdb, logger)

	var sms application.SMSDispatcher
	if pub := container.GetSMSPub(); pub != nil {
		sms = pub
	}
	otpSvc := application.NewOTPService(userRepo, rdb, sms, logger, cfg.OTPTTL, cfg.OTPMaxAttempts)

	authHandler := handlers.NewAuthHandler(authSvc, logger, cfg.CookieDomain, cfg.RefreshCookieSecure())
	cartHandler := handlers.NewCartHandler(cartSvc, logger)
	otpHandler := handlers.NewOTPHandler(otpSvc, logger)
	adminHandler := handlers.NewAdminHandler(authSvc, logger)

	r.Add(modules.NewAuthModule(authHandler, jwt))
	r.Add(modules.NewCartModule(cartHandler, jwt))
	r.Add(modules.NewOTPModule(otpHandler, jwt))
	r.Add(modules.NewAdminModule(adminHandler, userRepo, jwt))
}
