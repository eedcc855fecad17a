package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/bgmbox/internal/app/notification"
)

// PlaybackServiceClient is a client for the PlaybackService.
type PlaybackServiceClient struct {
	notifyUserGesture   *connect.Client[Empty, StatusResponse]
	playBackground      *connect.Client[TrackRequest, StatusResponse]
	stopBackground      *connect.Client[Empty, StatusResponse]
	toggleBackground    *connect.Client[Empty, StatusResponse]
	userClickPlay       *connect.Client[Empty, StatusResponse]
	playEffect          *connect.Client[EffectRequest, StatusResponse]
	stopEffect          *connect.Client[Empty, StatusResponse]
	crossfadeTo         *connect.Client[CrossfadeRequest, StatusResponse]
	setBackgroundVolume *connect.Client[VolumeRequest, StatusResponse]
	setEffectVolume     *connect.Client[VolumeRequest, StatusResponse]
	setMuted            *connect.Client[MuteRequest, StatusResponse]
	toggleMute          *connect.Client[Empty, StatusResponse]
	getStatus           *connect.Client[Empty, StatusResponse]
	listTracks          *connect.Client[Empty, TracksResponse]
	subscribe           *connect.Client[Empty, notification.Notification]
}

// NewPlaybackServiceClient constructs a client for the PlaybackService at
// baseURL (e.g. http://localhost:8080).
func NewPlaybackServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PlaybackServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSONCodec()}, opts...)
	return &PlaybackServiceClient{
		notifyUserGesture:   connect.NewClient[Empty, StatusResponse](httpClient, baseURL+NotifyUserGestureProcedure, opts...),
		playBackground:      connect.NewClient[TrackRequest, StatusResponse](httpClient, baseURL+PlayBackgroundProcedure, opts...),
		stopBackground:      connect.NewClient[Empty, StatusResponse](httpClient, baseURL+StopBackgroundProcedure, opts...),
		toggleBackground:    connect.NewClient[Empty, StatusResponse](httpClient, baseURL+ToggleBackgroundProcedure, opts...),
		userClickPlay:       connect.NewClient[Empty, StatusResponse](httpClient, baseURL+UserClickPlayProcedure, opts...),
		playEffect:          connect.NewClient[EffectRequest, StatusResponse](httpClient, baseURL+PlayEffectProcedure, opts...),
		stopEffect:          connect.NewClient[Empty, StatusResponse](httpClient, baseURL+StopEffectProcedure, opts...),
		crossfadeTo:         connect.NewClient[CrossfadeRequest, StatusResponse](httpClient, baseURL+CrossfadeToProcedure, opts...),
		setBackgroundVolume: connect.NewClient[VolumeRequest, StatusResponse](httpClient, baseURL+SetBackgroundVolumeProcedure, opts...),
		setEffectVolume:     connect.NewClient[VolumeRequest, StatusResponse](httpClient, baseURL+SetEffectVolumeProcedure, opts...),
		setMuted:            connect.NewClient[MuteRequest, StatusResponse](httpClient, baseURL+SetMutedProcedure, opts...),
		toggleMute:          connect.NewClient[Empty, StatusResponse](httpClient, baseURL+ToggleMuteProcedure, opts...),
		getStatus:           connect.NewClient[Empty, StatusResponse](httpClient, baseURL+GetStatusProcedure, opts...),
		listTracks:          connect.NewClient[Empty, TracksResponse](httpClient, baseURL+ListTracksProcedure, opts...),
		subscribe:           connect.NewClient[Empty, notification.Notification](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

func (c *PlaybackServiceClient) NotifyUserGesture(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	return c.notifyUserGesture.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) PlayBackground(ctx context.Context, req *connect.Request[TrackRequest]) (*connect.Response[StatusResponse], error) {
	return c.playBackground.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) StopBackground(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	return c.stopBackground.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) ToggleBackground(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	return c.toggleBackground.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) UserClickPlay(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	return c.userClickPlay.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) PlayEffect(ctx context.Context, req *connect.Request[EffectRequest]) (*connect.Response[StatusResponse], error) {
	return c.playEffect.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) StopEffect(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	return c.stopEffect.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) CrossfadeTo(ctx context.Context, req *connect.Request[CrossfadeRequest]) (*connect.Response[StatusResponse], error) {
	return c.crossfadeTo.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) SetBackgroundVolume(ctx context.Context, req *connect.Request[VolumeRequest]) (*connect.Response[StatusResponse], error) {
	return c.setBackgroundVolume.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) SetEffectVolume(ctx context.Context, req *connect.Request[VolumeRequest]) (*connect.Response[StatusResponse], error) {
	return c.setEffectVolume.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) SetMuted(ctx context.Context, req *connect.Request[MuteRequest]) (*connect.Response[StatusResponse], error) {
	return c.setMuted.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) ToggleMute(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	return c.toggleMute.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) GetStatus(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[StatusResponse], error) {
	return c.getStatus.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) ListTracks(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[TracksResponse], error) {
	return c.listTracks.CallUnary(ctx, req)
}

func (c *PlaybackServiceClient) Subscribe(ctx context.Context, req *connect.Request[Empty]) (*connect.ServerStreamForClient[notification.Notification], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
