package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/habitual/internal/auth"
	"github.com/MarcoPoloResearchLab/habitual/internal/habits"
	"github.com/MarcoPoloResearchLab/habitual/internal/notifications"
	"github.com/MarcoPoloResearchLab/habitual/internal/reminders"
	"github.com/MarcoPoloResearchLab/habitual/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey         = "habitual_user_id"
	userContextKey           = "habitual_user"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUserService      = errors.New("user service dependency required")
	errMissingHabitService     = errors.New("habit service dependency required")
	errMissingNotifications    = errors.New("notification service dependency required")
	errMissingReminderTrigger  = errors.New("reminder trigger dependency required")
)

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

type UserService interface {
	ResolveUser(ctx context.Context, claims auth.SessionClaims) (users.User, error)
	UpsertPushSubscription(ctx context.Context, externalID string, subscription users.PushSubscription) error
	ClearPushSubscription(ctx context.Context, externalID string) error
}

type HabitService interface {
	ListHabits(ctx context.Context, userID string) ([]habits.Habit, error)
	GetHabit(ctx context.Context, userID string, habitID string) (habits.Habit, error)
	CreateHabit(ctx context.Context, userID string, draft habits.Draft) (habits.Habit, error)
	UpdateHabit(ctx context.Context, userID string, habitID string, draft habits.Draft) error
	DeleteHabit(ctx context.Context, userID string, habitID string) error
	LogCompletion(ctx context.Context, userID string, habitID string) (habits.CompletionResult, error)
	Stats(ctx context.Context, userID string) (habits.Stats, error)
}

type NotificationService interface {
	List(ctx context.Context, userID string) ([]notifications.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID string, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type ReminderTrigger interface {
	Process(ctx context.Context, presentedCredential string) (reminders.Result, error)
}

type Dependencies struct {
	SessionValidator  SessionValidator
	Users             UserService
	Habits            HabitService
	Notifications     NotificationService
	Reminders         ReminderTrigger
	Realtime          *RealtimeDispatcher
	PushPublicKey     string
	HeartbeatInterval time.Duration
	Clock             func() time.Time
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Habits == nil {
		return nil, errMissingHabitService
	}
	if deps.Notifications == nil {
		return nil, errMissingNotifications
	}
	if deps.Reminders == nil {
		return nil, errMissingReminderTrigger
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessions:          deps.SessionValidator,
		users:             deps.Users,
		habits:            deps.Habits,
		notifications:     deps.Notifications,
		reminders:         deps.Reminders,
		realtime:          realtime,
		pushPublicKey:     deps.PushPublicKey,
		heartbeatInterval: heartbeat,
		clock:             clock,
		logger:            logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/push/public-key", handler.handlePushPublicKey)
	router.GET("/cron/reminders", handler.handleReminderTrigger)
	router.POST("/cron/reminders", handler.handleReminderTrigger)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/habits", handler.handleListHabits)
	protected.POST("/habits", handler.handleCreateHabit)
	protected.GET("/habits/:id", handler.handleGetHabit)
	protected.PATCH("/habits/:id", handler.handleUpdateHabit)
	protected.PUT("/habits/:id", handler.handleUpdateHabit)
	protected.DELETE("/habits/:id", handler.handleDeleteHabit)
	protected.POST("/habits/:id/complete", handler.handleLogCompletion)
	protected.GET("/stats", handler.handleStats)
	protected.GET("/notifications", handler.handleListNotifications)
	protected.POST("/notifications/read-all", handler.handleMarkAllNotificationsRead)
	protected.POST("/notifications/:id/read", handler.handleMarkNotificationRead)
	protected.GET("/notifications/stream", handler.handleNotificationStream)
	protected.GET("/settings", handler.handleSettings)
	protected.PUT("/settings/push-subscription", handler.handleSavePushSubscription)
	protected.DELETE("/settings/push-subscription", handler.handleClearPushSubscription)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	sessions          SessionValidator
	users             UserService
	habits            HabitService
	notifications     NotificationService
	reminders         ReminderTrigger
	realtime          *RealtimeDispatcher
	pushPublicKey     string
	heartbeatInterval time.Duration
	clock             func() time.Time
	logger            *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handlePushPublicKey(c *gin.Context) {
	if h.pushPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push_not_configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.pushPublicKey})
}

func (h *httpHandler) handleReminderTrigger(c *gin.Context) {
	result, err := h.reminders.Process(c.Request.Context(), auth.CredentialFromRequest(c.Request))
	if errors.Is(err, reminders.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err != nil {
		h.logger.Error("reminder trigger failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reminder_processing_failed"})
		return
	}
	c.JSON(http.StatusOK, reminderResponsePayload{Success: true, RemindersProcessed: result.Processed})
}

func (h *httpHandler) handleListHabits(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	list, err := h.habits.ListHabits(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response := habitListPayload{Habits: make([]habitPayload, 0, len(list))}
	for _, habit := range list {
		response.Habits = append(response.Habits, newHabitPayload(habit))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetHabit(c *gin.Context) {
	habit, err := h.habits.GetHabit(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newHabitPayload(habit))
}

func (h *httpHandler) handleCreateHabit(c *gin.Context) {
	var request habits.Draft
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	userID := c.GetString(userIDContextKey)
	habit, err := h.habits.CreateHabit(c.Request.Context(), userID, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishHabitChange(userID, habit.ID)
	c.JSON(http.StatusCreated, newHabitPayload(habit))
}

func (h *httpHandler) handleUpdateHabit(c *gin.Context) {
	var request habits.Draft
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	userID := c.GetString(userIDContextKey)
	habitID := c.Param("id")
	if err := h.habits.UpdateHabit(c.Request.Context(), userID, habitID, request); err != nil {
		h.respondError(c, err)
		return
	}
	h.publishHabitChange(userID, habitID)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleDeleteHabit(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	habitID := c.Param("id")
	if err := h.habits.DeleteHabit(c.Request.Context(), userID, habitID); err != nil {
		h.respondError(c, err)
		return
	}
	h.publishHabitChange(userID, habitID)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLogCompletion(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	result, err := h.habits.LogCompletion(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if result.Changed {
		h.publishHabitChange(userID, result.Habit.ID)
	}
	c.JSON(http.StatusOK, completionPayload{
		Habit:   newHabitPayload(result.Habit),
		Changed: result.Changed,
	})
}

func (h *httpHandler) handleStats(c *gin.Context) {
	stats, err := h.habits.Stats(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStatsPayload(stats))
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	list, err := h.notifications.List(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response := notificationListPayload{
		Notifications: make([]notificationPayload, 0, len(list)),
		UnreadCount:   unread,
	}
	for _, notification := range list {
		response.Notifications = append(response.Notifications, newNotificationPayload(notification))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleMarkNotificationRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMarkAllNotificationsRead(c *gin.Context) {
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *httpHandler) handleSettings(c *gin.Context) {
	value, _ := c.Get(userContextKey)
	user, ok := value.(users.User)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	_, pushEnabled := user.PushSubscription()
	c.JSON(http.StatusOK, settingsPayload{
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		PushEnabled: pushEnabled,
	})
}

func (h *httpHandler) handleSavePushSubscription(c *gin.Context) {
	var subscription users.PushSubscription
	if err := c.ShouldBindJSON(&subscription); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	err := h.users.UpsertPushSubscription(c.Request.Context(), c.GetString(userIDContextKey), subscription)
	if errors.Is(err, users.ErrInvalidPushSubscription) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_push_subscription"})
		return
	}
	if err != nil {
		h.logger.Error("failed to store push subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "push_subscription_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleClearPushSubscription(c *gin.Context) {
	if err := h.users.ClearPushSubscription(c.Request.Context(), c.GetString(userIDContextKey)); err != nil {
		h.logger.Error("failed to clear push subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "push_subscription_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.users.ResolveUser(c.Request.Context(), claims)
	if errors.Is(err, users.ErrInvalidIdentity) {
		h.logger.Warn("session identity rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve user", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user_resolution_failed"})
		return
	}
	c.Set(userIDContextKey, user.ExternalID)
	c.Set(userContextKey, user)
	c.Next()
}

type codedError interface {
	Code() string
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	var validationErrs habits.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, validationErrorPayload{
			Error:   "invalid_habit",
			Details: newFieldErrorPayloads(validationErrs),
		})
	case errors.Is(err, habits.ErrHabitNotFound), errors.Is(err, notifications.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, habits.ErrInvalidHabitID), errors.Is(err, habits.ErrInvalidUserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	default:
		code := "internal_error"
		var coded codedError
		if errors.As(err, &coded) {
			code = coded.Code()
		}
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": code})
	}
}

func (h *httpHandler) publishHabitChange(userID string, habitID string) {
	h.realtime.Publish(RealtimeMessage{
		UserID:    userID,
		EventType: RealtimeEventHabitsChanged,
		IDs:       []string{habitID},
		Timestamp: h.clock().UTC(),
	})
}
