package message

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"chatty/logger"
	"chatty/middleware"
	"chatty/service/storage"
	"chatty/tools/errs"
)

// Handler exposes the message HTTP surface:
//
//	GET  /api/messages/users     sidebar roster
//	GET  /api/messages/:id       conversation history
//	POST /api/messages/send/:id  send a message
type Handler struct {
	svc   *Service
	users UserLister
}

func NewHandler(svc *Service, users UserLister) *Handler {
	return &Handler{svc: svc, users: users}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/users", h.GetUsers)
	r.GET("/:id", h.GetMessages)
	r.POST("/send/:id", h.SendMessage)
}

func (h *Handler) GetUsers(c *gin.Context) {
	me, ok := callerID(c)
	if !ok {
		return
	}
	users, err := h.users.ListOthers(c.Request.Context(), me)
	if err != nil {
		logger.Error("list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
		return
	}
	if users == nil {
		users = []*storage.User{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) GetMessages(c *gin.Context) {
	me, ok := callerID(c)
	if !ok {
		return
	}
	msgs, err := h.svc.History(c.Request.Context(), me, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []*storage.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	me, ok := callerID(c)
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	msg, err := h.svc.Send(c.Request.Context(), me, c.Param("id"), req.Text, req.Image)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	if ce := errs.AsCodeError(err); ce != nil {
		logger.Debug("request failed", zap.Error(err))
		c.JSON(ce.Code, gin.H{"message": ce.Error()})
		return
	}
	logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
}
