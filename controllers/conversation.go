package controllers

import (
	"net/http"
	"strconv"

	"PitchChat/middleware"
	"PitchChat/models"
	"PitchChat/pkg/services"

	"github.com/gin-gonic/gin"
)

func ListConversations(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, err := svc.List(c.Request.Context(), c.GetString(middleware.ContextUserIDKey))
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, convs)
	}
}

func GetConversation(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(middleware.ContextUserIDKey)
		conv, err := svc.Get(c.Request.Context(), c.Param("id"), uid)
		if err != nil {
			failErr(c, err)
			return
		}
		unread, err := svc.ConversationUnread(c.Request.Context(), conv.ID, uid)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"conversation": conv, "unreadCount": unread})
	}
}

// GetMessages returns one page of history. Fetching it marks the caller's
// received messages in the conversation as read.
func GetMessages(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.Query("limit"))

		hp, err := svc.History(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserIDKey), page, limit)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, gin.H{
			"messages": hp.Messages,
			"pagination": gin.H{
				"page":    hp.Page,
				"limit":   hp.Limit,
				"total":   hp.Total,
				"hasMore": hp.HasMore,
			},
		})
	}
}

type initiateBody struct {
	PitchID string `json:"pitchId" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// InitiateConversation answers 201 for a new conversation and 200 when the
// investor already has one for the pitch.
func InitiateConversation(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body initiateBody
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "pitchId and message are required")
			return
		}
		id, _ := middleware.CurrentIdentity(c)

		conv, created, err := svc.Initiate(c.Request.Context(), services.InitiateInput{
			InvestorID: id.UserID,
			Role:       id.Role,
			PitchID:    body.PitchID,
			Message:    body.Message,
		})
		if err != nil {
			failErr(c, err)
			return
		}
		data := gin.H{"conversationId": conv.ID, "isNew": created}
		if created {
			okMessage(c, http.StatusCreated, "conversation started", data)
			return
		}
		okMessage(c, http.StatusOK, "conversation already exists", data)
	}
}

type sendBody struct {
	Content     string             `json:"content" binding:"required"`
	MessageType models.MessageType `json:"messageType"`
}

// SendMessage is the REST fallback for the socket send_message event.
func SendMessage(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body sendBody
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, http.StatusBadRequest, "message content is required")
			return
		}
		msg, err := svc.SendMessage(c.Request.Context(), services.SendInput{
			ConversationID: c.Param("id"),
			SenderID:       c.GetString(middleware.ContextUserIDKey),
			Content:        body.Content,
			MessageType:    body.MessageType,
		})
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusCreated, msg)
	}
}

func MarkAsRead(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.MarkAsRead(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserIDKey))
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, gin.H{
			"conversationId": res.ConversationID,
			"markedCount":    res.Marked,
			"readAt":         res.ReadAt,
			"unreadCount":    res.UnreadCount,
		})
	}
}

func DeleteConversation(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserIDKey)); err != nil {
			failErr(c, err)
			return
		}
		okMessage(c, http.StatusOK, "conversation deleted", nil)
	}
}

func UnreadCount(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svc.UnreadCount(c.Request.Context(), c.GetString(middleware.ContextUserIDKey))
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, gin.H{"count": n})
	}
}
