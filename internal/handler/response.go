package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/storefront/backend/internal/model"
	"github.com/storefront/backend/internal/service"
	"go.uber.org/zap"
)

const (
	msgInvalidInput       = "Dữ liệu không hợp lệ"
	msgInvalidCredentials = "Email hoặc mật khẩu không đúng"
	msgWrongPassword      = "Mật khẩu hiện tại không đúng"
	msgTokenMissing       = "Vui lòng đăng nhập để tiếp tục"
	msgTokenInvalid       = "Token không hợp lệ"
	msgTokenExpired       = "Token đã hết hạn"
	msgTokenStale         = "Tài khoản không còn tồn tại"
	msgTokenRevoked       = "Phiên đăng nhập đã kết thúc"
	msgUnauthorized       = "Chưa xác thực"
	msgAccountLocked      = "Tài khoản đã bị khóa"
	msgForbidden          = "Bạn không có quyền thực hiện thao tác này"
	msgEmailTaken         = "Email đã được sử dụng"
	msgNotFound           = "Không tìm thấy người dùng"
	msgInvalidOTP         = "Mã OTP không hợp lệ hoặc đã hết hạn"
	msgInvalidResetToken  = "Yêu cầu đặt lại mật khẩu không hợp lệ hoặc đã hết hạn"
	msgSelfModification   = "Không thể thay đổi vai trò, khóa hoặc xóa chính tài khoản của bạn"
	msgTooManyRequests    = "Quá nhiều yêu cầu, vui lòng thử lại sau"
	msgServerError        = "Lỗi máy chủ, vui lòng thử lại sau"
)

// writeError maps service errors onto the JSON error contract and aborts the chain.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, model.ErrorResponse) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, model.ErrorResponse{Message: msgInvalidInput, Errors: verr.Fields}
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, model.ErrorResponse{Message: msgInvalidCredentials}
	case errors.Is(err, service.ErrWrongPassword):
		return http.StatusUnauthorized, model.ErrorResponse{Message: msgWrongPassword}
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, model.ErrorResponse{
			Message: tokenMessage(err),
			Reason:  service.TokenReason(err),
		}
	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusForbidden, model.ErrorResponse{Message: msgAccountLocked}
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, model.ErrorResponse{Message: msgForbidden}
	case errors.Is(err, service.ErrConflict):
		return http.StatusBadRequest, model.ErrorResponse{Message: msgEmailTaken}
	case errors.Is(err, service.ErrSelfModification):
		return http.StatusBadRequest, model.ErrorResponse{Message: msgSelfModification}
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, model.ErrorResponse{Message: msgInvalidInput}
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, model.ErrorResponse{Message: msgNotFound}
	case errors.Is(err, service.ErrInvalidResetToken):
		return http.StatusBadRequest, model.ErrorResponse{Message: msgInvalidResetToken}
	case errors.Is(err, service.ErrInvalidOTP):
		return http.StatusBadRequest, model.ErrorResponse{Message: msgInvalidOTP}
	default:
		return http.StatusInternalServerError, model.ErrorResponse{Message: msgServerError}
	}
}

func tokenMessage(err error) string {
	switch service.TokenReason(err) {
	case "missing":
		return msgTokenMissing
	case "invalid":
		return msgTokenInvalid
	case "expired":
		return msgTokenExpired
	case "stale":
		return msgTokenStale
	case "revoked":
		return msgTokenRevoked
	default:
		return msgUnauthorized
	}
}

// bindJSON binds the body into obj, turning binding failures into a
// *service.ValidationError that names the offending JSON fields.
func bindJSON(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		verr := &service.ValidationError{}
		for _, fe := range ves {
			verr.Add(fe.Field(), fieldMessage(fe))
		}
		return verr
	}
	return service.NewValidationError("body", "Dữ liệu JSON không hợp lệ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Trường này là bắt buộc"
	case "email":
		return "Email không hợp lệ"
	case "min":
		return "Phải có ít nhất " + fe.Param() + " ký tự"
	case "max":
		return "Không được vượt quá " + fe.Param() + " ký tự"
	case "len":
		return "Phải có đúng " + fe.Param() + " ký tự"
	case "numeric":
		return "Chỉ được chứa chữ số"
	default:
		return "Giá trị không hợp lệ"
	}
}

var registerTagNames sync.Once

// useJSONFieldNames makes validator report fields by their JSON name.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
