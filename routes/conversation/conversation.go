package conversation

import (
	"PitchChat/controllers"
	"PitchChat/middleware"
	"PitchChat/pkg/services"
	"PitchChat/pkg/token"

	"github.com/gin-gonic/gin"
)

// Register registers conversation routes (protected)
func Register(g *gin.RouterGroup, svc *services.ChatService, limiter *middleware.LimiterStore) {
	g.GET("/conversations", controllers.ListConversations(svc))
	g.POST("/conversations/initiate",
		middleware.RequireEntitlement(token.EntitlementContactEntrepreneurs),
		middleware.RateLimit(limiter),
		controllers.InitiateConversation(svc))
	g.GET("/conversations/:id", controllers.GetConversation(svc))
	g.DELETE("/conversations/:id", controllers.DeleteConversation(svc))
	g.GET("/conversations/:id/messages", controllers.GetMessages(svc))
	// REST fallback for the socket send
	g.POST("/conversations/:id/messages", middleware.RateLimit(limiter), controllers.SendMessage(svc))
	g.PATCH("/conversations/:id/read", controllers.MarkAsRead(svc))
	g.GET("/unread-count", controllers.UnreadCount(svc))
}
