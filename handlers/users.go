package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/users"
	"storefront/pkg/ctxmanage"
	"storefront/pkg/logkey"
)

func (h *Handler) Signup(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var nu users.NewUser
	if err := c.ShouldBindJSON(&nu); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(nu); err != nil {
		slog.Error("validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name, email and a password of at least 8 characters are required"})
		return
	}

	user, verifyToken, err := h.users.InsertUser(c.Request.Context(), nu)
	if err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		slog.Error("error creating user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	verifyURL := h.cfg.AppBaseURL + "/api/verify?token=" + verifyToken
	if err := h.mailer.SendVerification(user.Email, verifyURL); err != nil {
		slog.Error("failed to send verification email", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account created, check your email to verify", "user_id": user.ID})
}

func (h *Handler) Login(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var l users.Login
	if err := c.ShouldBindJSON(&l); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(l); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), l)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		slog.Error("error authenticating user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	token, err := h.keys.GenerateToken(user.ID, user.Role)
	if err != nil {
		slog.Error("error generating token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to log in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	token := c.Query("token")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token query param is required"})
		return
	}

	if err := h.users.VerifyEmail(c.Request.Context(), token); err != nil {
		if errors.Is(err, users.ErrBadToken) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Token is invalid or expired"})
			return
		}
		slog.Error("error verifying email", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified"})
}

func (h *Handler) ResendVerification(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	address := c.Query("email")
	if address == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email query param is required"})
		return
	}

	token, err := h.users.ResetVerifyToken(c.Request.Context(), address)
	if err != nil {
		// Do not reveal whether the address exists or is already verified.
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"message": "If the account needs verification, an email is on its way"})
			return
		}
		slog.Error("error resetting verify token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resend verification"})
		return
	}

	verifyURL := h.cfg.AppBaseURL + "/api/verify?token=" + token
	if err := h.mailer.SendVerification(address, verifyURL); err != nil {
		slog.Error("failed to send verification email", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}

	c.JSON(http.StatusOK, gin.H{"message": "If the account needs verification, an email is on its way"})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
		return
	}

	token, err := h.users.IssueResetToken(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"message": "If the account exists, a reset email is on its way"})
			return
		}
		slog.Error("error issuing reset token", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to start password reset"})
		return
	}

	resetURL := h.cfg.AppBaseURL + "/reset-password?token=" + token
	if err := h.mailer.SendPasswordReset(req.Email, resetURL); err != nil {
		slog.Error("failed to send reset email", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	}

	c.JSON(http.StatusOK, gin.H{"message": "If the account exists, a reset email is on its way"})
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) ResetPassword(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "token and a password of at least 8 characters are required"})
		return
	}

	if err := h.users.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, users.ErrBadToken) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Token is invalid or expired"})
			return
		}
		slog.Error("error resetting password", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *Handler) Me(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := callerClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		slog.Error("error fetching user", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	c.JSON(http.StatusOK, user)
}
