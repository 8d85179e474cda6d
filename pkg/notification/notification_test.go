package notification

import (
	"context"
	"errors"
	"testing"

	"SafeStack/pkg/i18n"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeMailClient struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailClient) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newComposer(t *testing.T, lang string) *Composer {
	tr, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)
	return NewComposer(tr, lang)
}

func TestComposeBody(t *testing.T) {
	c := newComposer(t, "en")
	body := c.Body(AlertDetails{
		Policy:      "Hard Hat Required",
		Severity:    "high",
		Timestamp:   "00:12",
		Description: "Worker without helmet",
		Reasoning:   "Head visible, no helmet",
		VideoURL:    "https://example.com/v.mp4",
	})
	want := "Policy Violated: Hard Hat Required\n" +
		"Severity: high\n" +
		"Timestamp in Video: 00:12\n\n" +
		"Description: Worker without helmet\n\n" +
		"Reasoning: Head visible, no helmet\n\n" +
		"Video URL: https://example.com/v.mp4"
	assert.Equal(t, want, body)
	assert.Equal(t, "Safety Violation Detected: Hard Hat Required", c.Subject("Hard Hat Required"))
}

func TestComposeHTML(t *testing.T) {
	c := newComposer(t, "en")
	html, err := c.HTML("line1\n<b>line2</b>", []string{"https://cdn/a.png", "https://cdn/b.png"})
	require.NoError(t, err)

	assert.Contains(t, html, "⚠️ Safety Alert")
	assert.Contains(t, html, "white-space: pre-wrap;")
	assert.Contains(t, html, "&lt;b&gt;line2&lt;/b&gt;")
	assert.Contains(t, html, "Evidence Images")
	assert.Contains(t, html, `<a href="https://cdn/a.png">Image 1</a>`)
	assert.Contains(t, html, `<a href="https://cdn/b.png">Image 2</a>`)
	assert.Contains(t, html, `<img src="https://cdn/a.png" alt="Image 1"`)
	assert.Contains(t, html, `<img src="https://cdn/b.png" alt="Image 2"`)

	// unsafe schemes are neutralised by html/template
	html, err = c.HTML("body", []string{"javascript:alert(1)"})
	require.NoError(t, err)
	assert.NotContains(t, html, `src="javascript:`)
	assert.Contains(t, html, "This is an automated alert from SafeStack Safety Monitoring System.")

	html, err = c.HTML("body", nil)
	require.NoError(t, err)
	assert.NotContains(t, html, "Evidence Images")
}

func TestComposeChinese(t *testing.T) {
	c := newComposer(t, "zh")
	assert.Equal(t, "检测到安全违规：PPE", c.Subject("PPE"))
}

func TestSendAlertEmail(t *testing.T) {
	cli := &fakeMailClient{}
	m := NewMailerWithClient(MailConfig{From: "alerts@safestack.dev"}, cli, newComposer(t, "en"))

	err := m.SendAlertEmail(context.Background(), "ops@example.com", []string{"https://cdn/a.png"}, "body", "Safety Violation Detected: PPE")
	require.NoError(t, err)
	require.Len(t, cli.sent, 1)

	msg := cli.sent[0]
	assert.Equal(t, []string{"ops@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Safety Violation Detected: PPE"}, msg.GetHeader("Subject"))
	require.Len(t, msg.GetHeader("From"), 1)
	assert.Contains(t, msg.GetHeader("From")[0], "SafeStack Alerts")
	assert.Contains(t, msg.GetHeader("From")[0], "<alerts@safestack.dev>")
}

func TestSendAlertEmailFailures(t *testing.T) {
	c := newComposer(t, "en")

	err := NewMailerWithClient(MailConfig{}, nil, c).SendAlertEmail(context.Background(), "a@b.c", nil, "b", "s")
	assert.Error(t, err)

	boom := errors.New("smtp: 535 auth failed")
	err = NewMailerWithClient(MailConfig{}, &fakeMailClient{err: boom}, c).SendAlertEmail(context.Background(), "a@b.c", nil, "b", "s")
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewMailerWithClient(MailConfig{}, &fakeMailClient{}, c).SendAlertEmail(ctx, "a@b.c", nil, "b", "s")
	assert.ErrorIs(t, err, context.Canceled)
}
