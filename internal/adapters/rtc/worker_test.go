package rtc

import (
	"context"
	"testing"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterCodecsAssignsPayloadTypes(t *testing.T) {
	codecs, err := routerCodecs([]domain.RtpCodecCapability{
		{MimeType: "audio/opus", ClockRate: 48000, Channels: 2, PreferredPayloadType: 96},
		{MimeType: "video/VP8", ClockRate: 90000},
		{MimeType: "video/H264", ClockRate: 90000, Parameters: map[string]any{"packetization-mode": 1}},
	})
	require.NoError(t, err)
	require.Len(t, codecs, 3)

	assert.Equal(t, domain.KindAudio, codecs[0].Kind)
	assert.Equal(t, uint8(96), codecs[0].PreferredPayloadType)
	assert.Equal(t, uint8(97), codecs[1].PreferredPayloadType)
	assert.Equal(t, uint8(98), codecs[2].PreferredPayloadType)
	assert.NotEmpty(t, codecs[1].RtcpFeedback)
	assert.Empty(t, codecs[0].RtcpFeedback)
}

func TestRouterCodecsRejectsBadInput(t *testing.T) {
	_, err := routerCodecs([]domain.RtpCodecCapability{{MimeType: "text/plain", ClockRate: 1}})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = routerCodecs([]domain.RtpCodecCapability{
		{MimeType: "audio/opus", ClockRate: 48000, PreferredPayloadType: 100},
		{MimeType: "video/VP8", ClockRate: 90000, PreferredPayloadType: 100},
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestFmtpLineSorted(t *testing.T) {
	line := fmtpLine(map[string]any{
		"profile-level-id":   "42e01f",
		"packetization-mode": 1,
	})
	assert.Equal(t, "packetization-mode=1;profile-level-id=42e01f", line)
	assert.Empty(t, fmtpLine(nil))
}

func TestNewWorkerValidatesConfig(t *testing.T) {
	_, err := NewWorker(Config{MinPort: 50000, MaxPort: 40000})
	assert.Error(t, err)
	_, err = NewWorker(Config{ListenIP: "not-an-ip"})
	assert.Error(t, err)

	w, err := NewWorker(Config{ListenIP: "0.0.0.0", MinPort: 40000, MaxPort: 49999})
	require.NoError(t, err)
	w.Close()
}

func TestWorkerCreateRouter(t *testing.T) {
	w, err := NewWorker(Config{})
	require.NoError(t, err)
	defer w.Close()

	mr, err := w.CreateRouter(context.Background(), domain.DefaultMediaCodecs())
	require.NoError(t, err)
	caps := mr.RtpCapabilities()
	require.Len(t, caps.Codecs, len(domain.DefaultMediaCodecs()))
	assert.False(t, mr.CanConsume("missing", caps))

	_, err = mr.CreateTransport(context.Background(), domain.Direction("sideways"))
	assert.ErrorIs(t, err, domain.ErrWrongDirection)

	require.NoError(t, mr.Close())
	_, err = mr.CreateTransport(context.Background(), domain.DirectionSend)
	assert.ErrorIs(t, err, ErrRouterClosed)
}

func TestWorkerClosedRejectsRouters(t *testing.T) {
	w, err := NewWorker(Config{})
	require.NoError(t, err)
	w.Close()

	_, err = w.CreateRouter(context.Background(), domain.DefaultMediaCodecs())
	assert.ErrorIs(t, err, ErrWorkerClosed)
}

func TestWorkerFailClosesDied(t *testing.T) {
	w, err := NewWorker(Config{})
	require.NoError(t, err)
	w.fail(assert.AnError)
	w.fail(assert.AnError)

	got, ok := <-w.Died()
	assert.True(t, ok)
	assert.ErrorIs(t, got, assert.AnError)
	_, ok = <-w.Died()
	assert.False(t, ok)
}
