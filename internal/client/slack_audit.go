package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/storefront/backend/internal/model"
)

var auditColors = map[string]string{
	model.AuditRoleChanged: "#0d6efd",
	model.AuditLocked:      "#dc3545",
	model.AuditUnlocked:    "#36a64f",
	model.AuditDeleted:     "#6c757d",
}

var auditTitles = map[string]string{
	model.AuditRoleChanged: "Đổi vai trò tài khoản",
	model.AuditLocked:      "Khóa tài khoản",
	model.AuditUnlocked:    "Mở khóa tài khoản",
	model.AuditDeleted:     "Xóa tài khoản",
}

// NotifyAudit posts one admin action to the audit channel.
func (c *SlackClient) NotifyAudit(ctx context.Context, entry model.AuditEntry) error {
	if !c.IsConfigured() {
		return fmt.Errorf("slack bot token or channel ID not configured")
	}
	_, err := c.send(ctx, buildAuditMessage(c.channelID, entry))
	return err
}

func buildAuditMessage(channel string, entry model.AuditEntry) SlackMessage {
	color, ok := auditColors[entry.Action]
	if !ok {
		color = "#ffc107"
	}
	title, ok := auditTitles[entry.Action]
	if !ok {
		title = entry.Action
	}

	fields := []SlackField{
		{Title: "Quản trị viên", Value: fmt.Sprintf("%s (#%d)", entry.ActorEmail, entry.ActorID), Short: true},
		{Title: "Tài khoản", Value: fmt.Sprintf("%s (#%d)", entry.TargetEmail, entry.TargetID), Short: true},
	}
	if entry.Detail != "" {
		fields = append(fields, SlackField{Title: "Chi tiết", Value: entry.Detail})
	}

	return SlackMessage{
		Channel: channel,
		Text:    title + ": " + entry.TargetEmail,
		Attachments: []SlackAttachment{
			{
				Color:  color,
				Title:  title,
				Fields: fields,
				Footer: "storefront-backend · user #" + strconv.FormatInt(entry.TargetID, 10),
				Ts:     entry.At.Unix(),
			},
		},
	}
}
