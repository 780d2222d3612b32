package domain

import (
	"encoding/json"
	"strings"
)

type RtcpFeedback struct {
	Type      string `json:"type" mapstructure:"type"`
	Parameter string `json:"parameter,omitempty" mapstructure:"parameter"`
}

// RtpCodecCapability is one codec a router can route. It doubles as the
// media_codecs config entry.
type RtpCodecCapability struct {
	Kind                 MediaKind      `json:"kind" mapstructure:"kind"`
	MimeType             string         `json:"mimeType" mapstructure:"mime_type"`
	PreferredPayloadType uint8          `json:"preferredPayloadType,omitempty" mapstructure:"preferred_payload_type"`
	ClockRate            uint32         `json:"clockRate" mapstructure:"clock_rate"`
	Channels             uint16         `json:"channels,omitempty" mapstructure:"channels"`
	Parameters           map[string]any `json:"parameters,omitempty" mapstructure:"parameters"`
	RtcpFeedback         []RtcpFeedback `json:"rtcpFeedback,omitempty" mapstructure:"rtcp_feedback"`
}

type RtpCapabilities struct {
	Codecs []RtpCodecCapability `json:"codecs"`
}

type RtpCodecParameters struct {
	MimeType     string         `json:"mimeType"`
	PayloadType  uint8          `json:"payloadType"`
	ClockRate    uint32         `json:"clockRate"`
	Channels     uint16         `json:"channels,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	RtcpFeedback []RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

type RtpEncodingParameters struct {
	SSRC uint32 `json:"ssrc,omitempty"`
	RID  string `json:"rid,omitempty"`
}

type RtpParameters struct {
	Mid       string                  `json:"mid,omitempty"`
	Codecs    []RtpCodecParameters    `json:"codecs"`
	Encodings []RtpEncodingParameters `json:"encodings,omitempty"`
}

// TransportParams are the engine-native connection parameters handed to the
// client after a transport is created. The coordinator never looks inside.
type TransportParams struct {
	ID             string          `json:"id"`
	IceParameters  json.RawMessage `json:"iceParameters"`
	IceCandidates  json.RawMessage `json:"iceCandidates"`
	DtlsParameters json.RawMessage `json:"dtlsParameters"`
}

// ConnectParams carry the remote side of a transport.
type ConnectParams struct {
	DtlsParameters json.RawMessage `json:"dtlsParameters"`
	IceParameters  json.RawMessage `json:"iceParameters,omitempty"`
	IceCandidates  json.RawMessage `json:"iceCandidates,omitempty"`
}

func KindOfMime(mime string) MediaKind {
	kind, _, _ := strings.Cut(strings.ToLower(mime), "/")
	return MediaKind(kind)
}

func isRtx(mime string) bool {
	return strings.HasSuffix(strings.ToLower(mime), "/rtx")
}

func channelsOf(c uint16) uint16 {
	if c == 0 {
		return 1
	}
	return c
}

// Matches reports whether the capability describes the same codec.
func (c RtpCodecCapability) Matches(mime string, clockRate uint32, channels uint16) bool {
	if !strings.EqualFold(c.MimeType, mime) || c.ClockRate != clockRate {
		return false
	}
	if KindOfMime(mime) == KindAudio && channelsOf(c.Channels) != channelsOf(channels) {
		return false
	}
	return true
}

// Find returns the capability matching codec.
func (caps RtpCapabilities) Find(codec RtpCodecParameters) (RtpCodecCapability, bool) {
	for _, c := range caps.Codecs {
		if c.Matches(codec.MimeType, codec.ClockRate, codec.Channels) {
			return c, true
		}
	}
	return RtpCodecCapability{}, false
}

func (caps RtpCapabilities) Supports(codec RtpCodecParameters) bool {
	_, ok := caps.Find(codec)
	return ok
}

// PrimaryCodec is the first media codec, skipping retransmission entries.
func (p RtpParameters) PrimaryCodec() (RtpCodecParameters, bool) {
	for _, c := range p.Codecs {
		if !isRtx(c.MimeType) {
			return c, true
		}
	}
	return RtpCodecParameters{}, false
}

// Validate checks that p describes a single-encoding stream of the given kind.
func (p RtpParameters) Validate(kind MediaKind) error {
	codec, ok := p.PrimaryCodec()
	if !ok {
		return ErrBadRequest
	}
	if KindOfMime(codec.MimeType) != kind {
		return ErrBadRequest
	}
	if len(p.Encodings) == 0 || p.Encodings[0].SSRC == 0 {
		return ErrBadRequest
	}
	return nil
}

// DefaultMediaCodecs is the router codec set: opus for audio, H264 for
// Safari/iOS and VP8 for the rest.
func DefaultMediaCodecs() []RtpCodecCapability {
	return []RtpCodecCapability{
		{
			Kind:                 KindAudio,
			MimeType:             "audio/opus",
			PreferredPayloadType: 111,
			ClockRate:            48000,
			Channels:             2,
		},
		{
			Kind:                 KindVideo,
			MimeType:             "video/H264",
			PreferredPayloadType: 102,
			ClockRate:            90000,
			Parameters: map[string]any{
				"packetization-mode":      1,
				"profile-level-id":        "42e01f",
				"level-asymmetry-allowed": 1,
				"x-google-start-bitrate":  1000,
			},
		},
		{
			Kind:                 KindVideo,
			MimeType:             "video/VP8",
			PreferredPayloadType: 96,
			ClockRate:            90000,
			Parameters: map[string]any{
				"x-google-start-bitrate": 1000,
			},
		},
	}
}
