package auth

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
)

func testMailConfig() config.MailConfig {
	return config.MailConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"}
}

func TestNewSender_FallsBackToLog(t *testing.T) {
	assert.IsType(t, LogSender{}, NewSender(config.MailConfig{}))
	assert.IsType(t, &SMTPSender{}, NewSender(testMailConfig()))
}

func TestSMTPSender_Send(t *testing.T) {
	s := NewSMTPSender(testMailConfig())
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, s.Send(context.Background(), "ada@example.com", "Reset your password", "line one\nline two"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@example.com", gotFrom)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: ada@example.com\r\n")
	assert.Contains(t, msg, "Subject: Reset your password\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two"))
}

func TestSMTPSender_RejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender(testMailConfig())
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("message must not be sent")
		return nil
	}

	err := s.Send(context.Background(), "ada@example.com\r\nBcc: eve@example.com", "hi", "body")
	assert.ErrorIs(t, err, errHeaderInjection)
}

func TestSMTPSender_DeliveryError(t *testing.T) {
	s := NewSMTPSender(testMailConfig())
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("554 rejected")
	}
	assert.Error(t, s.Send(context.Background(), "ada@example.com", "hi", "body"))
}

func TestForgotPassword_LogFallbackKeepsTokenOutOfLogs(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	store := database.NewMemoryDB()
	resets := NewMemoryResetStore()
	svc := NewService(store, testAuthConfig(), nil, resets, LogSender{})
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpRequest("quiet@example.com"))
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "quiet@example.com"))

	require.NotEmpty(t, hook.AllEntries())
	for _, e := range hook.AllEntries() {
		line, err := e.String()
		require.NoError(t, err)
		assert.NotContains(t, line, "token=")
		assert.NotContains(t, line, testAuthConfig().ResetURLBase)
	}
}
