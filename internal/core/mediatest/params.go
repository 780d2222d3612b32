package mediatest

import "github.com/dkeye/Huddle/internal/domain"

func AudioParams() domain.RtpParameters {
	return domain.RtpParameters{
		Codecs:    []domain.RtpCodecParameters{{MimeType: "audio/opus", PayloadType: 111, ClockRate: 48000, Channels: 2}},
		Encodings: []domain.RtpEncodingParameters{{SSRC: 1111}},
	}
}

func VideoParams() domain.RtpParameters {
	return domain.RtpParameters{
		Codecs:    []domain.RtpCodecParameters{{MimeType: "video/VP8", PayloadType: 96, ClockRate: 90000}},
		Encodings: []domain.RtpEncodingParameters{{SSRC: 2222}},
	}
}

// Caps returns client capabilities covering the default codec set.
func Caps() domain.RtpCapabilities {
	return domain.RtpCapabilities{Codecs: domain.DefaultMediaCodecs()}
}

// AudioOnlyCaps cannot receive video.
func AudioOnlyCaps() domain.RtpCapabilities {
	var out domain.RtpCapabilities
	for _, c := range domain.DefaultMediaCodecs() {
		if c.Kind == domain.KindAudio {
			out.Codecs = append(out.Codecs, c)
		}
	}
	return out
}
