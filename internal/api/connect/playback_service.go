// Package connect provides the Connect RPC surface of the playback controller.
package connect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgmbox/internal/app/notification"
	"github.com/osa030/bgmbox/internal/app/playback"
	"github.com/osa030/bgmbox/internal/domain/track"
)

// PlaybackServiceName is the fully-qualified name of the service.
const PlaybackServiceName = "bgmbox.v1.PlaybackService"

// Procedure paths.
const (
	NotifyUserGestureProcedure   = "/bgmbox.v1.PlaybackService/NotifyUserGesture"
	PlayBackgroundProcedure      = "/bgmbox.v1.PlaybackService/PlayBackground"
	StopBackgroundProcedure      = "/bgmbox.v1.PlaybackService/StopBackground"
	ToggleBackgroundProcedure    = "/bgmbox.v1.PlaybackService/ToggleBackground"
	UserClickPlayProcedure       = "/bgmbox.v1.PlaybackService/UserClickPlay"
	PlayEffectProcedure          = "/bgmbox.v1.PlaybackService/PlayEffect"
	StopEffectProcedure          = "/bgmbox.v1.PlaybackService/StopEffect"
	CrossfadeToProcedure         = "/bgmbox.v1.PlaybackService/CrossfadeTo"
	SetBackgroundVolumeProcedure = "/bgmbox.v1.PlaybackService/SetBackgroundVolume"
	SetEffectVolumeProcedure     = "/bgmbox.v1.PlaybackService/SetEffectVolume"
	SetMutedProcedure            = "/bgmbox.v1.PlaybackService/SetMuted"
	ToggleMuteProcedure          = "/bgmbox.v1.PlaybackService/ToggleMute"
	GetStatusProcedure           = "/bgmbox.v1.PlaybackService/GetStatus"
	ListTracksProcedure          = "/bgmbox.v1.PlaybackService/ListTracks"
	SubscribeProcedure           = "/bgmbox.v1.PlaybackService/Subscribe"
)

var errNegativeDuration = errors.New("duration must not be negative")

// NotificationTypeInitialState is the type of the first message on every
// subscription.
const NotificationTypeInitialState = "initial_state"

// PlaybackService implements the PlaybackService RPC.
type PlaybackService struct {
	controller *playback.Controller
	notifier   *notification.Manager
	catalog    track.Catalog
}

// NewPlaybackService creates a new PlaybackService.
func NewPlaybackService(controller *playback.Controller, notifier *notification.Manager, catalog track.Catalog) *PlaybackService {
	return &PlaybackService{
		controller: controller,
		notifier:   notifier,
		catalog:    catalog,
	}
}

// NewPlaybackServiceHandler builds an HTTP handler for every procedure of
// svc. It returns the path to mount the handler on.
func NewPlaybackServiceHandler(svc *PlaybackService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSONCodec()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(NotifyUserGestureProcedure, connect.NewUnaryHandler(NotifyUserGestureProcedure, svc.NotifyUserGesture, opts...))
	mux.Handle(PlayBackgroundProcedure, connect.NewUnaryHandler(PlayBackgroundProcedure, svc.PlayBackground, opts...))
	mux.Handle(StopBackgroundProcedure, connect.NewUnaryHandler(StopBackgroundProcedure, svc.StopBackground, opts...))
	mux.Handle(ToggleBackgroundProcedure, connect.NewUnaryHandler(ToggleBackgroundProcedure, svc.ToggleBackground, opts...))
	mux.Handle(UserClickPlayProcedure, connect.NewUnaryHandler(UserClickPlayProcedure, svc.UserClickPlay, opts...))
	mux.Handle(PlayEffectProcedure, connect.NewUnaryHandler(PlayEffectProcedure, svc.PlayEffect, opts...))
	mux.Handle(StopEffectProcedure, connect.NewUnaryHandler(StopEffectProcedure, svc.StopEffect, opts...))
	mux.Handle(CrossfadeToProcedure, connect.NewUnaryHandler(CrossfadeToProcedure, svc.CrossfadeTo, opts...))
	mux.Handle(SetBackgroundVolumeProcedure, connect.NewUnaryHandler(SetBackgroundVolumeProcedure, svc.SetBackgroundVolume, opts...))
	mux.Handle(SetEffectVolumeProcedure, connect.NewUnaryHandler(SetEffectVolumeProcedure, svc.SetEffectVolume, opts...))
	mux.Handle(SetMutedProcedure, connect.NewUnaryHandler(SetMutedProcedure, svc.SetMuted, opts...))
	mux.Handle(ToggleMuteProcedure, connect.NewUnaryHandler(ToggleMuteProcedure, svc.ToggleMute, opts...))
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(ListTracksProcedure, connect.NewUnaryHandler(ListTracksProcedure, svc.ListTracks, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, svc.Subscribe, opts...))

	return "/" + PlaybackServiceName + "/", mux
}

func (s *PlaybackService) status() *connect.Response[StatusResponse] {
	return connect.NewResponse(newStatusResponse(s.controller.Status()))
}

func parseTrack(name string) (track.ID, error) {
	id, err := track.Parse(name)
	if err != nil {
		return "", connect.NewError(connect.CodeInvalidArgument, err)
	}
	return id, nil
}

// NotifyUserGesture reports a user gesture.
func (s *PlaybackService) NotifyUserGesture(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.controller.NotifyUserGesture()
	return s.status(), nil
}

// PlayBackground plays or defers a background track.
func (s *PlaybackService) PlayBackground(
	ctx context.Context,
	req *connect.Request[TrackRequest],
) (*connect.Response[StatusResponse], error) {
	id, err := parseTrack(req.Msg.Track)
	if err != nil {
		return nil, err
	}
	s.controller.PlayBackground(id, req.Msg.Looping())
	return s.status(), nil
}

// StopBackground stops the background track.
func (s *PlaybackService) StopBackground(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.controller.StopBackground()
	return s.status(), nil
}

// ToggleBackground pauses or resumes the background track.
func (s *PlaybackService) ToggleBackground(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.controller.ToggleBackground()
	return s.status(), nil
}

// UserClickPlay handles an explicit play button press.
func (s *PlaybackService) UserClickPlay(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.controller.UserClickPlay()
	return s.status(), nil
}

// PlayEffect plays a one-shot effect.
func (s *PlaybackService) PlayEffect(
	ctx context.Context,
	req *connect.Request[EffectRequest],
) (*connect.Response[StatusResponse], error) {
	id, err := parseTrack(req.Msg.Track)
	if err != nil {
		return nil, err
	}
	s.controller.PlayEffect(id)
	return s.status(), nil
}

// StopEffect stops the current effect.
func (s *PlaybackService) StopEffect(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.controller.StopEffect()
	return s.status(), nil
}

// CrossfadeTo fades the background over to another track.
func (s *PlaybackService) CrossfadeTo(
	ctx context.Context,
	req *connect.Request[CrossfadeRequest],
) (*connect.Response[StatusResponse], error) {
	id, err := parseTrack(req.Msg.Track)
	if err != nil {
		return nil, err
	}
	if req.Msg.DurationMs < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errNegativeDuration)
	}
	s.controller.CrossfadeTo(id, time.Duration(req.Msg.DurationMs)*time.Millisecond)
	return s.status(), nil
}

// SetBackgroundVolume sets the background volume preference.
func (s *PlaybackService) SetBackgroundVolume(
	ctx context.Context,
	req *connect.Request[VolumeRequest],
) (*connect.Response[StatusResponse], error) {
	s.controller.SetBackgroundVolume(req.Msg.Volume)
	return s.status(), nil
}

// SetEffectVolume sets the effect volume preference.
func (s *PlaybackService) SetEffectVolume(
	ctx context.Context,
	req *connect.Request[VolumeRequest],
) (*connect.Response[StatusResponse], error) {
	s.controller.SetEffectVolume(req.Msg.Volume)
	return s.status(), nil
}

// SetMuted sets the mute preference.
func (s *PlaybackService) SetMuted(
	ctx context.Context,
	req *connect.Request[MuteRequest],
) (*connect.Response[StatusResponse], error) {
	s.controller.SetMuted(req.Msg.Muted)
	return s.status(), nil
}

// ToggleMute flips the mute preference.
func (s *PlaybackService) ToggleMute(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	s.controller.ToggleMute()
	return s.status(), nil
}

// GetStatus returns the current controller state.
func (s *PlaybackService) GetStatus(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[StatusResponse], error) {
	return s.status(), nil
}

// ListTracks returns the track catalog.
func (s *PlaybackService) ListTracks(
	ctx context.Context,
	req *connect.Request[Empty],
) (*connect.Response[TracksResponse], error) {
	ids := track.All()
	resp := &TracksResponse{Tracks: make([]TrackInfo, 0, len(ids))}
	for _, id := range ids {
		uri, err := s.catalog.URI(id)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		resp.Tracks = append(resp.Tracks, TrackInfo{Name: id.String(), URI: uri})
	}
	return connect.NewResponse(resp), nil
}

// Subscribe streams playback events, starting with the current state.
func (s *PlaybackService) Subscribe(
	ctx context.Context,
	req *connect.Request[Empty],
	stream *connect.ServerStream[notification.Notification],
) error {
	st := s.controller.Status()
	initial := &notification.Notification{
		SequenceNo: s.notifier.NextSequenceNo(),
		Type:       NotificationTypeInitialState,
		Track:      st.Track.String(),
		SessionID:  st.SessionID,
		State:      st.State.String(),
		Time:       time.Now(),
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := s.notifier.Subscribe(adapter)
	zlog.Debug().Msgf("connect: subscriber joined: subscription=%s", subscriptionID)

	// Wait for context cancellation or controller shutdown
	select {
	case <-ctx.Done():
	case <-s.controller.Done():
	}

	s.notifier.Unsubscribe(subscriptionID)
	zlog.Debug().Msgf("connect: subscriber left: subscription=%s", subscriptionID)
	return nil
}

// notificationStreamAdapter serializes sends on a connect.ServerStream.
// A send that timed out in the manager may still be running when the next
// broadcast starts.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[notification.Notification]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(n)
}
