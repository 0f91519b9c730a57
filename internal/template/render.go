// Package template renders notification bodies for account events.
//
// Supported placeholders:
//
//	{{user.id}}, {{user.email}}, {{user.name}}
//
//	{{otp.code}}, {{otp.expires_in}}, {{otp.expires_at}}
package template

import (
	"strconv"
	"strings"
	"time"

	"github.com/storefront/backend/internal/model"
)

// DefaultPasswordResetSubject and DefaultPasswordResetBody are used when no
// custom template is configured.
const (
	DefaultPasswordResetSubject = "Mã xác thực đặt lại mật khẩu"
	DefaultPasswordResetBody    = "Xin chào {{user.name}},\n\n" +
		"Mã xác thực đặt lại mật khẩu của bạn là {{otp.code}}.\n" +
		"Mã có hiệu lực trong {{otp.expires_in}} (đến {{otp.expires_at}}).\n\n" +
		"Nếu bạn không yêu cầu đặt lại mật khẩu, hãy bỏ qua email này."
)

type UserData struct {
	ID    int64
	Email string
	Name  string
}

type OTPData struct {
	Code      string
	ExpiresIn time.Duration
	ExpiresAt time.Time
}

func UserDataFromModel(user *model.User) UserData {
	return UserData{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.FullName,
	}
}

// RenderBody replaces placeholders in body. A nil argument renders its
// placeholders as empty strings.
func RenderBody(body string, user *UserData, otp *OTPData) string {
	pairs := make([]string, 0, 12)

	if user != nil {
		pairs = append(pairs,
			"{{user.id}}", strconv.FormatInt(user.ID, 10),
			"{{user.email}}", user.Email,
			"{{user.name}}", user.Name,
		)
	} else {
		pairs = append(pairs,
			"{{user.id}}", "",
			"{{user.email}}", "",
			"{{user.name}}", "",
		)
	}

	if otp != nil {
		pairs = append(pairs,
			"{{otp.code}}", otp.Code,
			"{{otp.expires_in}}", formatMinutes(otp.ExpiresIn),
			"{{otp.expires_at}}", otp.ExpiresAt.Format(time.RFC3339),
		)
	} else {
		pairs = append(pairs,
			"{{otp.code}}", "",
			"{{otp.expires_in}}", "",
			"{{otp.expires_at}}", "",
		)
	}

	return strings.NewReplacer(pairs...).Replace(body)
}

func formatMinutes(d time.Duration) string {
	if d < time.Minute {
		return strconv.Itoa(int(d.Seconds())) + " giây"
	}
	return strconv.Itoa(int(d.Minutes())) + " phút"
}
