package main

import (
	"voiceguard/internal/auth"
	"voiceguard/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app, authMW gin.HandlerFunc) {
	h := a.handlers

	// public
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	// Status reporters (dialplan scripts, gateways, Twilio). Authenticated by shared secret
	// or provider signature, not by participant tokens.
	hook := telephony.StatusHookHandler{Ingest: a.ingest, Secret: a.cfg.Telephony.WebhookSecret}.Handle
	r.GET("/v1/call-status", hook)
	r.POST("/v1/call-status", hook)
	r.POST("/webhooks/twilio/status", telephony.TwilioStatusHandler{
		Ingest:        a.ingest,
		AuthToken:     a.cfg.Telephony.TwilioAuthToken,
		PublicBaseURL: a.cfg.Telephony.PublicBaseURL,
	}.Handle)

	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		anyone := auth.RequireAnyRole(auth.RoleParticipant, auth.RoleOperator)

		v1.POST("/verifications", anyone, h.SubmitVerification)
		v1.GET("/status", anyone, h.ParticipantStatus)
		v1.POST("/status", anyone, h.ParticipantStatus)
		v1.POST("/enrollments", anyone, h.Enroll)

		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		// Operator-only directory management.
		ops := v1.Group("")
		ops.Use(auth.RequireAnyRole(auth.RoleOperator))
		{
			ops.POST("/participants", h.ProvisionParticipant)
		}
	}
}
