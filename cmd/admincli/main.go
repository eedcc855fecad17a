// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/bgmbox/internal/api/connect"
)

var (
	app    = kingpin.New("bgmbox-admincli", "bgmbox playback admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set BGMBOX_CONTROL_TOKEN env)").Envar("BGMBOX_CONTROL_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Get playback status")

	// tracks command
	tracksCmd = app.Command("tracks", "List the track catalog")

	// play command
	playCmd    = app.Command("play", "Play a background track")
	playTrack  = playCmd.Arg("track", "Track name").Required().String()
	playNoLoop = playCmd.Flag("no-loop", "Play the track once").Bool()

	// stop command
	stopCmd = app.Command("stop", "Stop the background track")

	// toggle command
	toggleCmd = app.Command("toggle", "Pause or resume the background track")

	// click command
	clickCmd = app.Command("click", "Press the play button")

	// crossfade command
	crossfadeCmd      = app.Command("crossfade", "Cross-fade to another background track")
	crossfadeTrack    = crossfadeCmd.Arg("track", "Track name").Required().String()
	crossfadeDuration = crossfadeCmd.Flag("duration", "Fade duration (default: server setting)").Duration()

	// volume command
	volumeCmd    = app.Command("volume", "Set a volume preference")
	volumeTarget = volumeCmd.Arg("target", "bgm or sfx").Required().Enum("bgm", "sfx")
	volumeValue  = volumeCmd.Arg("value", "Volume between 0 and 1").Required().Float64()

	// mute commands
	muteCmd       = app.Command("mute", "Mute all audio")
	unmuteCmd     = app.Command("unmute", "Unmute audio")
	toggleMuteCmd = app.Command("toggle-mute", "Flip the mute preference")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewPlaybackServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewControlTokenInterceptor(*token)),
	)

	ctx := context.Background()

	if command == tracksCmd.FullCommand() {
		listTracks(ctx, client)
		return
	}

	var (
		resp *connect.Response[apiconnect.StatusResponse]
		err  error
	)
	switch command {
	case statusCmd.FullCommand():
		resp, err = client.GetStatus(ctx, empty())
	case playCmd.FullCommand():
		loop := !*playNoLoop
		resp, err = client.PlayBackground(ctx, connect.NewRequest(&apiconnect.TrackRequest{
			Track: *playTrack,
			Loop:  &loop,
		}))
	case stopCmd.FullCommand():
		resp, err = client.StopBackground(ctx, empty())
	case toggleCmd.FullCommand():
		resp, err = client.ToggleBackground(ctx, empty())
	case clickCmd.FullCommand():
		resp, err = client.UserClickPlay(ctx, empty())
	case crossfadeCmd.FullCommand():
		resp, err = client.CrossfadeTo(ctx, connect.NewRequest(&apiconnect.CrossfadeRequest{
			Track:      *crossfadeTrack,
			DurationMs: crossfadeDuration.Milliseconds(),
		}))
	case volumeCmd.FullCommand():
		req := connect.NewRequest(&apiconnect.VolumeRequest{Volume: *volumeValue})
		if *volumeTarget == "bgm" {
			resp, err = client.SetBackgroundVolume(ctx, req)
		} else {
			resp, err = client.SetEffectVolume(ctx, req)
		}
	case muteCmd.FullCommand():
		resp, err = client.SetMuted(ctx, connect.NewRequest(&apiconnect.MuteRequest{Muted: true}))
	case unmuteCmd.FullCommand():
		resp, err = client.SetMuted(ctx, connect.NewRequest(&apiconnect.MuteRequest{Muted: false}))
	case toggleMuteCmd.FullCommand():
		resp, err = client.ToggleMute(ctx, empty())
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printStatus(resp.Msg)
}

func empty() *connect.Request[apiconnect.Empty] {
	return connect.NewRequest(&apiconnect.Empty{})
}

func listTracks(ctx context.Context, client *apiconnect.PlaybackServiceClient) {
	resp, err := client.ListTracks(ctx, empty())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Tracks (%d):\n", len(resp.Msg.Tracks))
	for _, t := range resp.Msg.Tracks {
		fmt.Printf("  %-10s %s\n", t.Name, t.URI)
	}
}

func printStatus(s *apiconnect.StatusResponse) {
	fmt.Println("\n=== PLAYBACK STATUS ===")

	fmt.Printf("State: %s\n", formatState(s.State))
	if s.Track != "" {
		fmt.Printf("\nBackground:\n")
		fmt.Printf("  Track: %s\n", s.Track)
		fmt.Printf("  Session ID: %s\n", s.SessionID)
		fmt.Printf("  Playing: %v\n", s.Playing)
		if s.Fading {
			fmt.Println("  Cross-fade in progress")
		}
	} else {
		fmt.Println("\nNo background track")
	}
	if s.Pending != "" {
		fmt.Printf("  Pending: %s (waiting for a user gesture)\n", s.Pending)
	}
	if s.Effect != "" {
		fmt.Printf("\nEffect: %s\n", s.Effect)
	}

	fmt.Println("\nPreferences:")
	fmt.Printf("  BGM volume: %.2f\n", s.BackgroundVolume)
	fmt.Printf("  SFX volume: %.2f\n", s.EffectVolume)
	fmt.Printf("  Muted: %v\n", s.Muted)
	fmt.Println()
}

func formatState(state string) string {
	switch state {
	case "locked":
		return "🔒 Locked (no user gesture yet)"
	case "unlocked":
		return "🔓 Unlocked"
	default:
		return "❓ Unknown"
	}
}
