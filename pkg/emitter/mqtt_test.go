package emitter

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"SafeStack/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	mqtt.Token
	err      error
	timedOut bool
}

func (t *fakeToken) Wait() bool                       { return !t.timedOut }
func (t *fakeToken) WaitTimeout(_ time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Error() error                     { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishCall struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mqtt.Client
	connected bool
	token     *fakeToken
	calls     []publishCall
}

func (c *fakeClient) IsConnected() bool { return c.connected }
func (c *fakeClient) Disconnect(uint)   { c.connected = false }
func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.calls = append(c.calls, publishCall{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func alertView(level int) *models.AlertView {
	return &models.AlertView{
		Alert:       models.Alert{ID: 9, PolicyID: 1, Explanation: "worker without helmet"},
		PolicyTitle: "Hard Hat Required",
		PolicyLevel: level,
	}
}

func TestPublishAlertTopicAndQoS(t *testing.T) {
	client := &fakeClient{connected: true, token: &fakeToken{}}
	e := NewMQTTEmitterWithClient(MQTTConfig{Topic: "site/alerts"}, client)

	require.NoError(t, e.PublishAlert(alertView(3)))
	require.NoError(t, e.PublishAlert(alertView(1)))

	require.Len(t, client.calls, 2)
	assert.Equal(t, "site/alerts/3", client.calls[0].topic)
	assert.Equal(t, byte(1), client.calls[0].qos)
	assert.Equal(t, "site/alerts/1", client.calls[1].topic)
	assert.Equal(t, byte(0), client.calls[1].qos)

	var got models.AlertView
	require.NoError(t, json.Unmarshal(client.calls[0].payload, &got))
	assert.Equal(t, "Hard Hat Required", got.PolicyTitle)

	stats := e.Stats()
	assert.True(t, stats.Connected)
	assert.Equal(t, uint64(1), stats.Published["site/alerts/3"])
	assert.Zero(t, stats.Errors)
}

func TestPublishAlertFailures(t *testing.T) {
	e := NewMQTTEmitterWithClient(MQTTConfig{}, &fakeClient{connected: false})
	assert.Error(t, e.PublishAlert(alertView(2)))

	client := &fakeClient{connected: true, token: &fakeToken{err: errors.New("broker gone")}}
	e = NewMQTTEmitterWithClient(MQTTConfig{}, client)
	assert.ErrorContains(t, e.PublishAlert(alertView(2)), "broker gone")

	client.token = &fakeToken{timedOut: true}
	assert.ErrorContains(t, e.PublishAlert(alertView(2)), "timeout")

	assert.Equal(t, uint64(2), e.Stats().Errors)
	assert.Equal(t, "safestack/alerts/2", client.calls[0].topic)
}

func TestDisconnect(t *testing.T) {
	client := &fakeClient{connected: true, token: &fakeToken{}}
	e := NewMQTTEmitterWithClient(MQTTConfig{}, client)
	e.Disconnect()
	assert.False(t, client.connected)
	assert.False(t, e.Stats().Connected)
	assert.Error(t, e.PublishAlert(alertView(3)))
}
