package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/bnc-guild/attendance-engine/internal/api/middleware"
)

// SetupRoutes configures all REST API routes. Reads are public; everything
// that mutates the ledger, roster or loot sits behind authentication, with
// the per-action capability checks living in the services.
func SetupRoutes(router *gin.Engine, handler Handler, authCfg middleware.AuthConfig) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// Roster reads (public)
		v1.GET("/mains", handler.ListMains)
		v1.GET("/characters/:id", handler.GetCharacter)
		v1.GET("/characters/:id/boxes", handler.ListCharacterBoxes)

		// Raid and attendance reads (public)
		v1.GET("/raids", handler.ListRaids)
		v1.GET("/raids/:id/attendance", handler.GetAttendance)
		v1.GET("/raids/:id/attendance/:character_id", handler.GetTicksAttended)
		v1.GET("/raids/:id/split", handler.GetSplitMeta)

		// Claim reads (public)
		v1.GET("/claims/pending", handler.ListPendingClaims)
		v1.GET("/claims/decided", handler.ListDecidedClaims)

		// Loot and audit reads (public)
		v1.GET("/loot", handler.ListLoot)
		v1.GET("/loot/summary", handler.SummarizeLoot)
		v1.GET("/audit", handler.ListAuditEntries)

		// Allocator computations (stateless, public)
		v1.POST("/rolls", handler.GenerateRollRanges)
		v1.POST("/raids/:id/split", handler.ComputeSplit)

		// Mutations (authenticated; the services re-check capability so no
		// transport can bypass it)
		authed := v1.Group("", middleware.Auth(authCfg))
		{
			authed.POST("/characters", handler.RegisterCharacter)
			authed.POST("/characters/:id/owner", handler.LinkBox)
			authed.POST("/raids", handler.CreateRaid)
			authed.POST("/claims", handler.RequestTicks)
			authed.POST("/loot", handler.AwardLoot)

			// Officer-only decisions
			officer := authed.Group("", middleware.RequireOfficer())
			{
				officer.DELETE("/raids/:id", handler.DeleteRaid)
				officer.POST("/claims/approve", handler.ApproveClaim)
				officer.POST("/claims/reject", handler.RejectClaim)
				officer.POST("/attendance/remove", handler.RemoveTicks)
				officer.POST("/loot/:id/reassign", handler.ReassignLoot)
			}
		}
	}
}
