package rtc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/dkeye/Huddle/internal/app/sfu"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var ErrWorkerClosed = errors.New("rtc: worker closed")

type Config struct {
	// ListenIP restricts gathering to one local address; empty or 0.0.0.0 means any.
	ListenIP string
	// AnnouncedIP replaces host candidate addresses (public IP behind NAT).
	AnnouncedIP string
	MinPort     uint16
	MaxPort     uint16
	ICEServers  []string
}

// Worker is the in-process media engine. Every router built by it shares one
// relay manager; a panic in any relay kills the worker.
type Worker struct {
	cfg    Config
	relays *sfu.RelayManager

	mu      sync.Mutex
	routers map[string]*Router
	closed  bool

	dieOnce sync.Once
	died    chan error
}

func NewWorker(cfg Config) (*Worker, error) {
	if cfg.MinPort != 0 || cfg.MaxPort != 0 {
		if cfg.MinPort == 0 || cfg.MaxPort < cfg.MinPort {
			return nil, fmt.Errorf("rtc: invalid port range %d-%d", cfg.MinPort, cfg.MaxPort)
		}
	}
	if cfg.ListenIP != "" && net.ParseIP(cfg.ListenIP) == nil {
		return nil, fmt.Errorf("rtc: invalid listen ip %q", cfg.ListenIP)
	}
	w := &Worker{
		cfg:     cfg,
		routers: make(map[string]*Router),
		died:    make(chan error, 1),
	}
	w.relays = sfu.NewRelayManager(w.fail)
	log.Info().
		Str("module", "rtc").
		Str("listen_ip", cfg.ListenIP).
		Str("announced_ip", cfg.AnnouncedIP).
		Uint16("min_port", cfg.MinPort).
		Uint16("max_port", cfg.MaxPort).
		Msg("media worker started")
	return w, nil
}

// fail marks the worker dead. The process is expected to exit.
func (w *Worker) fail(err error) {
	w.dieOnce.Do(func() {
		log.Error().Err(err).Str("module", "rtc").Msg("media worker died")
		w.died <- err
		close(w.died)
	})
}

func (w *Worker) Died() <-chan error { return w.died }

func (w *Worker) settingEngine() (webrtc.SettingEngine, error) {
	se := webrtc.SettingEngine{}
	if w.cfg.MinPort != 0 {
		if err := se.SetEphemeralUDPPortRange(w.cfg.MinPort, w.cfg.MaxPort); err != nil {
			return se, err
		}
	}
	if w.cfg.AnnouncedIP != "" {
		se.SetNAT1To1IPs([]string{w.cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}
	if ip := net.ParseIP(w.cfg.ListenIP); ip != nil && !ip.IsUnspecified() {
		se.SetIPFilter(func(candidate net.IP) bool { return candidate.Equal(ip) })
	}
	return se, nil
}

func (w *Worker) CreateRouter(ctx context.Context, codecs []domain.RtpCodecCapability) (core.MediaRouter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	caps, err := routerCodecs(codecs)
	if err != nil {
		return nil, err
	}
	me, err := newMediaEngine(caps)
	if err != nil {
		return nil, err
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(me, registry); err != nil {
		return nil, err
	}
	se, err := w.settingEngine()
	if err != nil {
		return nil, err
	}
	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(me),
		webrtc.WithSettingEngine(se),
		webrtc.WithInterceptorRegistry(registry),
	)

	r := &Router{
		worker:    w,
		id:        uuid.NewString(),
		api:       api,
		caps:      domain.RtpCapabilities{Codecs: caps},
		producers: make(map[string]*Producer),
		consumers: make(map[string]map[string]*Consumer),
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkerClosed
	}
	w.routers[r.id] = r
	log.Info().Str("module", "rtc").Str("router", r.id).Int("codecs", len(caps)).Msg("router created")
	return r, nil
}

func (w *Worker) iceServers() []webrtc.ICEServer {
	if len(w.cfg.ICEServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: w.cfg.ICEServers}}
}

func (w *Worker) forget(r *Router) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.routers, r.id)
}

// Close shuts every router down concurrently.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	routers := make([]*Router, 0, len(w.routers))
	for _, r := range w.routers {
		routers = append(routers, r)
	}
	w.mu.Unlock()

	var wg conc.WaitGroup
	for _, r := range routers {
		wg.Go(func() {
			if err := r.Close(); err != nil {
				log.Warn().Err(err).Str("module", "rtc").Str("router", r.id).Msg("router close failed")
			}
		})
	}
	wg.Wait()
	w.relays.StopAll()
	log.Info().Str("module", "rtc").Int("routers", len(routers)).Msg("media worker closed")
}
