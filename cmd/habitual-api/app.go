package main

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/habitual/internal/auth"
	"github.com/MarcoPoloResearchLab/habitual/internal/config"
	"github.com/MarcoPoloResearchLab/habitual/internal/database"
	"github.com/MarcoPoloResearchLab/habitual/internal/habits"
	"github.com/MarcoPoloResearchLab/habitual/internal/logging"
	"github.com/MarcoPoloResearchLab/habitual/internal/notifications"
	"github.com/MarcoPoloResearchLab/habitual/internal/reminders"
	"github.com/MarcoPoloResearchLab/habitual/internal/server"
	"github.com/MarcoPoloResearchLab/habitual/internal/users"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type application struct {
	config  config.AppConfig
	logger  *zap.Logger
	db      *gorm.DB
	handler http.Handler
}

func (a *application) Close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.logger.Sync()
}

func buildApplication(configViper *viper.Viper) (*application, error) {
	appConfig, err := config.Load(configViper)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFile)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	app := &application{config: appConfig, logger: logger, db: db}
	handler, err := wireHandler(appConfig, db, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.handler = handler
	return app, nil
}

func wireHandler(appConfig config.AppConfig, db *gorm.DB, logger *zap.Logger) (http.Handler, error) {
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.TAuthSigningKey),
		Issuer:        appConfig.TAuthIssuer,
		CookieName:    appConfig.TAuthCookieName,
	})
	if err != nil {
		return nil, err
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		return nil, err
	}

	realtime := server.NewRealtimeDispatcher()

	dispatcherConfig := notifications.DispatcherConfig{
		Database:       db,
		Users:          userService,
		IDProvider:     habits.NewUUIDProvider(),
		ChannelTimeout: appConfig.ChannelTimeout,
		LinkBase:       appConfig.BaseURL,
		Listener:       realtime,
		Logger:         logger,
	}

	emailSender, err := notifications.NewResendSender(appConfig.Email.ResendAPIKey, appConfig.Email.From)
	switch {
	case err == nil:
		dispatcherConfig.Email = emailSender
	case errors.Is(err, notifications.ErrChannelNotConfigured):
		logger.Info("email channel disabled")
	default:
		return nil, err
	}

	var pushPublicKey string
	if appConfig.Push.Enabled() {
		pushSender, err := notifications.NewWebPushSender(notifications.WebPushConfig{
			PublicKey:  appConfig.Push.VAPIDPublicKey,
			PrivateKey: appConfig.Push.VAPIDPrivateKey,
			Subscriber: appConfig.Push.Subscriber,
		})
		if err != nil {
			return nil, err
		}
		dispatcherConfig.Push = pushSender
		pushPublicKey = pushSender.PublicKey()
	} else {
		logger.Info("push channel disabled")
	}

	dispatcher, err := notifications.NewDispatcher(dispatcherConfig)
	if err != nil {
		return nil, err
	}

	habitService, err := habits.NewService(habits.ServiceConfig{
		Database:   db,
		Location:   appConfig.Location,
		IDProvider: habits.NewUUIDProvider(),
		Events:     notifications.NewEventRouter(dispatcher, logger),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	notificationService, err := notifications.NewService(notifications.ServiceConfig{
		Database:  db,
		ListLimit: appConfig.NotificationCap,
		Listener:  realtime,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	if appConfig.CronSecret == "" {
		logger.Warn("cron.secret is empty; the reminder trigger will reject every request")
	}
	trigger, err := reminders.NewTrigger(reminders.TriggerConfig{
		Credential: auth.NewTriggerCredential(appConfig.CronSecret),
		Habits:     habitService,
		Notifier:   dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return server.NewHTTPHandler(server.Dependencies{
		SessionValidator: sessionValidator,
		Users:            userService,
		Habits:           habitService,
		Notifications:    notificationService,
		Reminders:        trigger,
		Realtime:         realtime,
		PushPublicKey:    pushPublicKey,
		Logger:           logger,
	})
}
