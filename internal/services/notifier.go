package services

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier 负责投递 send_email 动作产生的通知。
// 默认实现只写日志；接入真实邮件网关时替换此接口实现即可。
type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LogNotifier writes notifications to the application log instead of
// delivering them. Used as the default until an email gateway is wired.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendEmail(ctx context.Context, to, subject, body string) error {
	n.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Email notification (log delivery)")
	return nil
}
