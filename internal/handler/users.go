package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/model"
	"github.com/storefront/backend/internal/service"
	"go.uber.org/zap"
)

// UserHandler serves the admin user-management endpoints.
type UserHandler struct {
	svc    *service.UserAdminService
	logger *zap.Logger
}

func NewUserHandler(svc *service.UserAdminService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{svc: svc, logger: logger}
}

// ListUsers godoc
// @Summary List accounts
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} model.DataResponse{data=model.UserListPayload}
// @Failure 403 {object} model.ErrorResponse
// @Router /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	users, limit, offset, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.DataResponse{
		Success: true,
		Data:    model.UserListPayload{Users: users, Limit: limit, Offset: offset},
	})
}

// GetUser godoc
// @Summary Get an account
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} model.DataResponse{data=model.User}
// @Failure 404 {object} model.ErrorResponse
// @Router /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	user, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.DataResponse{Success: true, Data: user})
}

// UpdateRole godoc
// @Summary Change an account's role
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body model.UpdateRoleRequest true "0/1 or \"user\"/\"admin\""
// @Success 200 {object} model.DataResponse{data=model.User}
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/users/{id}/role [put]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var req model.UpdateRoleRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	user, err := h.svc.SetRole(c.Request.Context(), GetAuthUser(c), id, *req.Role)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.DataResponse{Success: true, Message: "Cập nhật vai trò thành công", Data: user})
}

// UpdateLock godoc
// @Summary Lock or unlock an account
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body model.UpdateLockRequest true "Lock flag"
// @Success 200 {object} model.DataResponse{data=model.User}
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/users/{id}/lock [put]
func (h *UserHandler) UpdateLock(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var req model.UpdateLockRequest
	if err := bindJSON(c, &req); err != nil {
		writeError(c, h.logger, err)
		return
	}

	user, err := h.svc.SetLocked(c.Request.Context(), GetAuthUser(c), id, *req.Locked)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	message := "Mở khóa tài khoản thành công"
	if user.Locked {
		message = "Khóa tài khoản thành công"
	}
	c.JSON(http.StatusOK, model.DataResponse{Success: true, Message: message, Data: user})
}

// DeleteUser godoc
// @Summary Delete an account
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} model.MessageResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), GetAuthUser(c), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Success: true, Message: "Xóa người dùng thành công"})
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.NewValidationError("id", "ID không hợp lệ")
	}
	return id, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, service.NewValidationError(name, "Phải là số nguyên không âm")
	}
	return n, nil
}
