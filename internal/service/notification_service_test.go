package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-performance-api/internal/models"
)

type fakeEmailSender struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeEmailSender) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func finishedJob(email string) *models.ReportJob {
	return &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeQuestionAnalysis,
		Params: models.ReportJobParams{BatchID: "b1", NotifyEmail: email, Format: models.ReportFormatPDF},
	}
}

func TestNotifyReportReadySendsLink(t *testing.T) {
	sender := &fakeEmailSender{}
	svc := NewNotificationServiceWithClient(sender, NotificationConfig{
		FromEmail: "reports@example.com",
		FromName:  "Performance Reports",
		BaseURL:   "https://api.example.com/",
	}, nil)

	require.NoError(t, svc.NotifyReportReady(context.Background(), finishedJob("teacher@example.com"), "/api/v1/export/abc"))
	require.Len(t, sender.inputs, 1)

	input := sender.inputs[0]
	assert.Equal(t, "Performance Reports <reports@example.com>", aws.ToString(input.FromEmailAddress))
	assert.Equal(t, []string{"teacher@example.com"}, input.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(input.Content.Simple.Subject.Data), "Question analysis report")
	assert.Contains(t, aws.ToString(input.Content.Simple.Body.Text.Data), "https://api.example.com/api/v1/export/abc")
}

func TestNotifyReportReadySkipsWithoutRecipient(t *testing.T) {
	sender := &fakeEmailSender{}
	svc := NewNotificationServiceWithClient(sender, NotificationConfig{FromEmail: "reports@example.com"}, nil)

	require.NoError(t, svc.NotifyReportReady(context.Background(), finishedJob(""), "/x"))
	assert.Empty(t, sender.inputs)
}

func TestNotifyReportReadyDisabled(t *testing.T) {
	svc, err := NewNotificationService(context.Background(), NotificationConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, svc.Enabled())
	require.NoError(t, svc.NotifyReportReady(context.Background(), finishedJob("teacher@example.com"), "/x"))
}

func TestNotifyReportReadyPropagatesErrors(t *testing.T) {
	sender := &fakeEmailSender{err: errors.New("throttled")}
	svc := NewNotificationServiceWithClient(sender, NotificationConfig{FromEmail: "reports@example.com"}, nil)

	err := svc.NotifyReportReady(context.Background(), finishedJob("teacher@example.com"), "/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teacher@example.com")
}
