package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imapex/tacbot-go/internal/bot"
	"github.com/imapex/tacbot-go/internal/config"
	"github.com/imapex/tacbot-go/internal/rooms"
	"github.com/imapex/tacbot-go/internal/webhook"
)

// setupRoutes configures all HTTP routes
func setupRoutes(router *gin.Engine, a *app, webhookHandler *webhook.Handler, registry *prometheus.Registry) {
	// Spark webhook callback
	router.GET("/", webhookHandler.HandleGet)
	router.POST("/", webhookHandler.Handle)

	// Runtime credential management
	router.GET("/config", a.handleGetConfig)
	router.POST("/config", a.handlePostConfig)

	// Ancillary endpoints
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "Up and healthy")
	})
	router.GET("/hello/:email", a.handleHello)
	router.GET("/create/:case/:email", a.handleCreateRoom)
	router.GET("/rooms", a.handleRoomCount)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}

// configView is the credential state returned by /config. The token is
// never echoed back.
func (a *app) configView() gin.H {
	view := gin.H{
		"SPARK_BOT_URL":      a.cfg.BotURL,
		"SPARK_BOT_APP_NAME": a.cfg.BotAppName,
		"SPARK_BOT_EMAIL":    "",
		"SPARK_BOT_TOKEN":    "",
	}
	if creds := a.cfg.Credentials(); creds != nil {
		view["SPARK_BOT_EMAIL"] = creds.Email
		view["SPARK_BOT_TOKEN"] = "REDACTED"
	}
	return view
}

func (a *app) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, a.configView())
}

func (a *app) handlePostConfig(c *gin.Context) {
	var body struct {
		Token string `json:"SPARK_BOT_TOKEN"`
		Email string `json:"SPARK_BOT_EMAIL"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if body.Token == "" || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "SPARK_BOT_TOKEN and SPARK_BOT_EMAIL are both required"})
		return
	}

	a.applyCredentials(c.Request.Context(), &config.Credentials{
		Token: body.Token,
		Email: body.Email,
	})
	c.JSON(http.StatusOK, a.configView())
}

func (a *app) handleHello(c *gin.Context) {
	email := c.Param("email")
	if !bot.CheckEmailSyntax(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return
	}

	rt := a.currentRuntime()
	if rt == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot credentials not configured"})
		return
	}

	greeting := fmt.Sprintf("Hello %s, I am %s. Add me to a case room and say /help to see what I can do.",
		email, a.cfg.BotAppName)
	if err := rt.Gateway.SendMessageToPerson(c.Request.Context(), email, greeting); err != nil {
		a.logger.WithError(err).WithField("email", email).Error("Failed to send greeting")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send greeting"})
		return
	}

	c.String(http.StatusOK, "Message sent to %s", email)
}

func (a *app) handleCreateRoom(c *gin.Context) {
	caseNumber := bot.VerifyCaseNumber(c.Param("case"))
	if caseNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case number"})
		return
	}
	email := c.Param("email")
	if !bot.CheckEmailSyntax(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return
	}

	rt := a.currentRuntime()
	if rt == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot credentials not configured"})
		return
	}

	provisioner := rooms.NewProvisioner(rt.Gateway, a.cases, a.logger)
	result, err := provisioner.Provision(c.Request.Context(), caseNumber, email)
	if errors.Is(err, rooms.ErrPersonNotFound) {
		c.String(http.StatusOK, "No user found with the email address: %s", email)
		return
	}
	if err != nil {
		a.logger.WithError(err).WithField("case", caseNumber).Error("Room provisioning failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to provision room"})
		return
	}

	c.String(http.StatusOK, strings.Join(result.Report, "\n"))
}

func (a *app) handleRoomCount(c *gin.Context) {
	rt := a.currentRuntime()
	if rt == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bot credentials not configured"})
		return
	}

	provisioner := rooms.NewProvisioner(rt.Gateway, a.cases, a.logger)
	count, err := provisioner.Count(c.Request.Context())
	if err != nil {
		a.logger.WithError(err).Error("Room count failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list rooms"})
		return
	}

	c.String(http.StatusOK, "%d", count)
}
