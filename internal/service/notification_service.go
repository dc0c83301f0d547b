package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

// EmailSender is the subset of the SES v2 client used for notifications.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// NotificationConfig configures report-ready emails.
type NotificationConfig struct {
	Region    string
	FromEmail string
	FromName  string
	BaseURL   string
}

// NotificationService emails report download links through Amazon SES. Without a sender
// address it only logs what it would have sent.
type NotificationService struct {
	client  EmailSender
	cfg     NotificationConfig
	logger  *zap.Logger
	enabled bool
}

// NewNotificationService loads AWS configuration and builds the SES client when a sender
// address is configured.
func NewNotificationService(ctx context.Context, cfg NotificationConfig, logger *zap.Logger) (*NotificationService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		logger.Info("report notifications disabled: SES_FROM_EMAIL not configured")
		return &NotificationService{cfg: cfg, logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger.Info("report notifications enabled", zap.String("from", cfg.FromEmail), zap.String("region", cfg.Region))
	return NewNotificationServiceWithClient(sesv2.NewFromConfig(awsCfg), cfg, logger), nil
}

// NewNotificationServiceWithClient wires an explicit sender, mainly for tests.
func NewNotificationServiceWithClient(client EmailSender, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{client: client, cfg: cfg, logger: logger, enabled: client != nil}
}

// Enabled reports whether emails are actually sent.
func (s *NotificationService) Enabled() bool {
	return s != nil && s.enabled
}

func reportTitle(t models.ReportType) string {
	switch t {
	case models.ReportTypeTeacherPerformance:
		return "Teacher performance report"
	case models.ReportTypeQuestionAnalysis:
		return "Question analysis report"
	case models.ReportTypeStudentProgress:
		return "Student progress report"
	default:
		return "Report"
	}
}

// NotifyReportReady sends the download link of a finished job to its notify address.
func (s *NotificationService) NotifyReportReady(ctx context.Context, job *models.ReportJob, downloadPath string) error {
	if s == nil || job == nil || job.Params.NotifyEmail == "" {
		return nil
	}
	to := job.Params.NotifyEmail
	if !s.enabled {
		s.logger.Info("skipping report notification (disabled)", zap.String("job_id", job.ID), zap.String("to", to))
		return nil
	}

	link := strings.TrimRight(s.cfg.BaseURL, "/") + downloadPath
	title := reportTitle(job.Type)
	subject := fmt.Sprintf("%s for batch %s is ready", title, job.Params.BatchID)

	textBody := fmt.Sprintf("%s for batch %s has finished.\n\nDownload it here:\n%s\n\nThe link expires automatically.\n",
		title, job.Params.BatchID, link)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<p>%s for batch <strong>%s</strong> has finished.</p>
	<p><a href="%s">Download the report</a></p>
	<p style="font-size: 12px; color: #666;">The link expires automatically.</p>
</body>
</html>`, html.EscapeString(title), html.EscapeString(job.Params.BatchID), html.EscapeString(link))

	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("send report notification to %s: %w", to, err)
	}
	s.logger.Info("report notification sent",
		zap.String("job_id", job.ID),
		zap.String("to", to),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}
