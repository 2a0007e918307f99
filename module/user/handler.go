package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"chatty/logger"
	"chatty/middleware"
	"chatty/tools/errs"
	"chatty/tools/security"
)

// Handler exposes the auth HTTP surface:
//
//	POST /api/auth/signup
//	POST /api/auth/login
//	POST /api/auth/logout
//	GET  /api/auth/check           (authenticated)
//	PUT  /api/auth/update-profile  (authenticated)
type Handler struct {
	svc    *Service
	jwt    security.Options
	secure bool // Secure cookie flag; on in production
}

func NewHandler(svc *Service, jwt security.Options, secureCookies bool) *Handler {
	return &Handler{svc: svc, jwt: jwt, secure: secureCookies}
}

// Register wires routes; limited throttles signup/login and authed
// guards the session routes.
func (h *Handler) Register(r gin.IRouter, limited, authed gin.HandlerFunc) {
	r.POST("/signup", limited, h.Signup)
	r.POST("/login", limited, h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/check", authed, h.Check)
	r.PUT("/update-profile", authed, h.UpdateProfile)
}

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	u, token, err := h.svc.Signup(c.Request.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.setAuthCookie(c, token)
	c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	u, token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.setAuthCookie(c, token)
	c.JSON(http.StatusOK, u)
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetCookie("jwt", "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (h *Handler) Check(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	u, err := h.svc.Current(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type updateProfileRequest struct {
	ProfilePic string `json:"profilePic"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}
	u, err := h.svc.UpdateProfilePic(c.Request.Context(), id, req.ProfilePic)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) setAuthCookie(c *gin.Context, token string) {
	maxAge := int(h.jwt.TTL.Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("jwt", token, maxAge, "/", "", h.secure, true)
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
		c.JSON(ce.Code, gin.H{"message": ce.Error()})
		return
	}
	logger.Error("auth request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
}
