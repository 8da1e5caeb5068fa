package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(s Service, logger *zap.Logger) *Handler { return &Handler{service: s, logger: logger} }

func clientIP(c *gin.Context) string {
	if ip, ok := c.Get("client_ip"); ok {
		if s, ok := ip.(string); ok {
			return s
		}
	}
	return c.ClientIP()
}

// ===============================
// Registration
// ===============================

type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3" example:"tahsildar.hosur"`
	Email       string `json:"email" binding:"required,email" example:"officer@example.gov.in"`
	Password    string `json:"password" binding:"required,min=8" example:"secret123"`
	Role        string `json:"role" binding:"required,oneof=Admin User admin user" example:"User"`
	EmployeeID  string `json:"employeeId" binding:"required" example:"TAH201"`
	Designation string `json:"designation" example:"Tahsildar"`
}

// Register godoc
// @Summary Create an account
// @Description The employee id must exist in the registry under the chosen designation.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Account"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.service.Register(c.Request.Context(), RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		EmployeeID:  req.EmployeeID,
		Designation: req.Designation,
		ClientIP:    clientIP(c),
	})
	if err != nil {
		var regErr *RegistrationError
		switch {
		case errors.As(err, &regErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": regErr.Message, "reason": regErr.Reason})
		case errors.Is(err, ErrEmployeeIDTaken), errors.Is(err, ErrAccountExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Registration successful", "user": user.Payload()})
}

// ===============================
// Login
// ===============================

type loginReq struct {
	Login    string `json:"login" binding:"required" example:"officer@example.gov.in"`
	Password string `json:"password" binding:"required" example:"secret123"`
}

// Login godoc
// @Summary Log in with username or email
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body loginReq true "Credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, user, err := h.service.Login(c.Request.Context(), LoginInput{
		Login:    req.Login,
		Password: req.Password,
		ClientIP: clientIP(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountInactive):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
		"user":         user.Payload(),
	})
}

// ===============================
// Refresh Token
// ===============================

type refreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh godoc
// @Summary Exchange a refresh token for an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body refreshReq true "Refresh token"
// @Success 200 {object} map[string]string
// @Router /api/v1/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": token})
}

// CheckEmployeeID godoc
// @Summary Whether an employee id is already linked to an account
// @Tags Auth
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} map[string]bool
// @Router /api/v1/auth/employee-id/{id}/available [get]
func (h *Handler) CheckEmployeeID(c *gin.Context) {
	available, err := h.service.EmployeeIDAvailable(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("employee id lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": !available, "available": available})
}

// ===============================
// Profile
// ===============================

func currentUser(c *gin.Context) (User, bool) {
	val, ok := c.Get("user")
	if !ok {
		return User{}, false
	}
	u, ok := val.(User)
	return u, ok
}

// Me godoc
// @Summary Current account
// @Tags Users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/users/me [get]
func (h *Handler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.Payload()})
}

type updateProfileReq struct {
	Username        string `json:"username" binding:"omitempty,min=3"`
	Email           string `json:"email" binding:"omitempty,email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"omitempty,min=8"`
}

// UpdateProfile godoc
// @Summary Update username, email or password
// @Tags Users
// @Accept json
// @Produce json
// @Param request body updateProfileReq true "Changes"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/users/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.service.UpdateProfile(c.Request.Context(), user.ID, UpdateProfileInput{
		Username:        req.Username,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ClientIP:        clientIP(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "current password is incorrect"})
		case errors.Is(err, ErrAccountExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("profile update failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": updated.Payload()})
}
