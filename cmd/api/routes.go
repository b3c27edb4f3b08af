package main

import (
	"callflow-platform/internal/httpapi"
	"callflow-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, api httpapi.Handlers, hooks httpapi.WebhookHandlers, authMW gin.HandlerFunc) {
	r.GET("/healthz", api.Healthz)

	// Provider webhooks (public).
	// NOTE: These endpoints should be protected by provider signature
	// validation in production.
	voice := r.Group("/webhooks/voice")
	{
		voice.POST("/:org_id", hooks.HandleVoice)
		voice.POST("/:org_id/recording", hooks.HandleRecording)
		voice.POST("/:org_id/menu", hooks.HandleMenu)
	}

	v1 := r.Group("/v1")

	// Token issuance is the only unauthenticated API route.
	v1.POST("/auth/session", api.Login)

	protected := v1.Group("")
	protected.Use(authMW)
	{
		// Dialer and call history: any member role.
		callsGroup := protected.Group("/calls")
		callsGroup.Use(rbac.RequireOrg())
		callsGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleAgent))
		{
			callsGroup.POST("/originate", api.OriginateCall)
			callsGroup.GET("", api.ListCalls)
			callsGroup.GET("/:call_sid/flow-log", api.FlowExecutionLog)
		}

		// Configuration changes: owner/manager only.
		settings := protected.Group("")
		settings.Use(rbac.RequireOrg())
		settings.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager))
		{
			settings.GET("/flow-config", api.GetFlowConfig)
			settings.PUT("/flow-config", api.PutFlowConfig)
			settings.GET("/phone-config", api.GetPhoneConfig)
			settings.PUT("/phone-config", api.PutPhoneConfig)
		}

		reports := protected.Group("/reports")
		reports.Use(rbac.RequireOrg())
		reports.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager))
		{
			reports.GET("/calls", api.CallsSummary)
		}
	}
}
