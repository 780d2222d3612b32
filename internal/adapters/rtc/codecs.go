package rtc

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/pion/webrtc/v4"
)

const firstDynamicPayloadType = 96

func videoFeedback() []domain.RtcpFeedback {
	return []domain.RtcpFeedback{
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "goog-remb"},
	}
}

// routerCodecs fills in payload types and default feedback for the
// configured codec set.
func routerCodecs(codecs []domain.RtpCodecCapability) ([]domain.RtpCodecCapability, error) {
	used := make(map[uint8]bool)
	for _, c := range codecs {
		if c.PreferredPayloadType != 0 {
			if used[c.PreferredPayloadType] {
				return nil, fmt.Errorf("duplicate payload type %d: %w", c.PreferredPayloadType, domain.ErrBadRequest)
			}
			used[c.PreferredPayloadType] = true
		}
	}
	next := uint8(firstDynamicPayloadType)
	out := make([]domain.RtpCodecCapability, 0, len(codecs))
	for _, c := range codecs {
		kind := domain.KindOfMime(c.MimeType)
		if !kind.Valid() {
			return nil, fmt.Errorf("codec %q: %w", c.MimeType, domain.ErrBadRequest)
		}
		c.Kind = kind
		if c.PreferredPayloadType == 0 {
			for used[next] {
				next++
			}
			c.PreferredPayloadType = next
			used[next] = true
		}
		if kind == domain.KindAudio && c.Channels == 0 {
			c.Channels = 1
		}
		if len(c.RtcpFeedback) == 0 && kind == domain.KindVideo {
			c.RtcpFeedback = videoFeedback()
		}
		c.Parameters = maps.Clone(c.Parameters)
		out = append(out, c)
	}
	return out, nil
}

// fmtpLine renders codec parameters the way SDP a=fmtp lines carry them.
func fmtpLine(params map[string]any) string {
	keys := slices.Sorted(maps.Keys(params))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ";")
}

func codecCapability(c domain.RtpCodecCapability) webrtc.RTPCodecCapability {
	fb := make([]webrtc.RTCPFeedback, 0, len(c.RtcpFeedback))
	for _, f := range c.RtcpFeedback {
		fb = append(fb, webrtc.RTCPFeedback{Type: f.Type, Parameter: f.Parameter})
	}
	return webrtc.RTPCodecCapability{
		MimeType:     c.MimeType,
		ClockRate:    c.ClockRate,
		Channels:     c.Channels,
		SDPFmtpLine:  fmtpLine(c.Parameters),
		RTCPFeedback: fb,
	}
}

func codecType(kind domain.MediaKind) webrtc.RTPCodecType {
	if kind == domain.KindAudio {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

func newMediaEngine(codecs []domain.RtpCodecCapability) (*webrtc.MediaEngine, error) {
	m := &webrtc.MediaEngine{}
	for _, c := range codecs {
		err := m.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: codecCapability(c),
			PayloadType:        webrtc.PayloadType(c.PreferredPayloadType),
		}, codecType(c.Kind))
		if err != nil {
			return nil, fmt.Errorf("register codec %s: %w", c.MimeType, err)
		}
	}
	return m, nil
}
