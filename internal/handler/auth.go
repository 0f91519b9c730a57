package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/model"
	"github.com/storefront/backend/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc      *service.AuthService
	recovery *service.RecoveryService
	cookies  SessionCookies
	logger   *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, recovery *service.RecoveryService, cookies SessionCookies, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{svc: svc, recovery: recovery, cookies: cookies, logger: logger}
}

// Register godoc
// @Summary Register a new account
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Account details"
// @Success 201 {object} model.DataResponse{data=model.AuthPayload}
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/users/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.cookies.Set(c, res.Tokens)
	c.JSON(http.StatusCreated, model.DataResponse{
		Success: true,
		Message: "Đăng ký thành công",
		Data:    h.authPayload(res),
	})
}

// Login godoc
// @Summary Login
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Email and password"
// @Success 200 {object} model.DataResponse{data=model.AuthPayload}
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/users/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Secret())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.cookies.Set(c, res.Tokens)
	c.JSON(http.StatusOK, model.DataResponse{
		Success: true,
		Message: "Đăng nhập thành công",
		Data:    h.authPayload(res),
	})
}

// Logout godoc
// @Summary Logout
// @Description Clears the session cookies. Always succeeds.
// @Tags users
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Router /api/users/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	accessToken := getAuthToken(c)
	if accessToken == "" {
		accessToken = AccessTokenExtractor.Extract(c)
	}
	h.svc.Logout(c.Request.Context(), accessToken, RefreshTokenExtractor.Extract(c))

	h.cookies.Clear(c)
	c.JSON(http.StatusOK, model.MessageResponse{Success: true, Message: "Đăng xuất thành công"})
}

// RefreshToken godoc
// @Summary Exchange a refresh token for a new token pair
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest false "Refresh token (or refreshToken cookie)"
// @Success 200 {object} model.DataResponse{data=model.RefreshPayload}
// @Failure 401 {object} model.ErrorResponse
// @Router /api/users/refresh-token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	res, err := h.svc.Rotate(c.Request.Context(), GetAuthUser(c), getAuthClaims(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.cookies.Set(c, res.Tokens)
	c.JSON(http.StatusOK, model.DataResponse{
		Success: true,
		Data: model.RefreshPayload{
			AccessToken:  res.Tokens.AccessToken,
			RefreshToken: res.Tokens.RefreshToken,
			ExpiresIn:    h.svc.AccessTTL(),
		},
	})
}

// Me godoc
// @Summary Get current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.DataResponse{data=model.User}
// @Failure 401 {object} model.ErrorResponse
// @Router /api/users/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeError(c, h.logger, service.ErrTokenMissing)
		return
	}
	c.JSON(http.StatusOK, model.DataResponse{Success: true, Data: user})
}

// Session godoc
// @Summary Describe the current session
// @Description Guests get authenticated=false instead of 401.
// @Tags users
// @Produce json
// @Success 200 {object} model.DataResponse{data=model.SessionPayload}
// @Router /api/users/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusOK, model.DataResponse{Success: true, Data: model.SessionPayload{Authenticated: false}})
		return
	}
	c.JSON(http.StatusOK, model.DataResponse{
		Success: true,
		Data: model.SessionPayload{
			Authenticated: true,
			User:          user,
			ExpiresAt:     h.svc.DisplayExpiry(getAuthToken(c)),
		},
	})
}

// UpdateProfile godoc
// @Summary Update name, phone or address
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.UpdateProfileRequest true "Fields to change"
// @Success 200 {object} model.DataResponse{data=model.User}
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/users/update-profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeError(c, h.logger, service.ErrTokenMissing)
		return
	}

	var req model.UpdateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	updated, err := h.svc.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.DataResponse{
		Success: true,
		Message: "Cập nhật thông tin thành công",
		Data:    updated,
	})
}

// UpdatePassword godoc
// @Summary Change password
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.UpdatePasswordRequest true "Current and new password"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/users/update-password [put]
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeError(c, h.logger, service.ErrTokenMissing)
		return
	}

	var req model.UpdatePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Success: true, Message: "Đổi mật khẩu thành công"})
}

// ForgotPassword godoc
// @Summary Send a password reset OTP
// @Description Responds identically whether or not the email is registered.
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.ForgotPasswordRequest true "Email"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/users/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req model.ForgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.recovery.RequestOTP(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{
		Success: true,
		Message: "Nếu email đã được đăng ký, mã OTP sẽ được gửi tới hộp thư của bạn",
	})
}

// VerifyOTP godoc
// @Summary Exchange an OTP for a reset token
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.VerifyOTPRequest true "Email and OTP"
// @Success 200 {object} model.DataResponse{data=model.ResetTokenPayload}
// @Failure 400 {object} model.ErrorResponse
// @Router /api/users/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req model.VerifyOTPRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	token, err := h.recovery.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.DataResponse{
		Success: true,
		Message: "Xác thực OTP thành công",
		Data:    model.ResetTokenPayload{ResetToken: token},
	})
}

// ResetPassword godoc
// @Summary Set a new password with a reset token
// @Tags users
// @Accept json
// @Produce json
// @Param request body model.ResetPasswordRequest true "Email, reset token and new password"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/users/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.recovery.ResetPassword(c.Request.Context(), req.Email, req.ResetToken, req.NewPassword); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Success: true, Message: "Đặt lại mật khẩu thành công"})
}

func (h *AuthHandler) authPayload(res *model.AuthResult) model.AuthPayload {
	return model.AuthPayload{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    h.svc.AccessTTL(),
	}
}
