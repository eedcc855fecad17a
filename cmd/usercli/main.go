// Package main provides the user CLI entry point for testing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/bgmbox/internal/api/connect"
	"github.com/osa030/bgmbox/internal/app/notification"
)

var (
	app    = kingpin.New("bgmbox-usercli", "bgmbox user client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set BGMBOX_CONTROL_TOKEN env)").Envar("BGMBOX_CONTROL_TOKEN").String()

	// gesture command
	gestureCmd = app.Command("gesture", "Report a user gesture (click, key press, touch)")

	// effect command
	effectCmd   = app.Command("effect", "Play a sound effect")
	effectTrack = effectCmd.Arg("track", "Track name").Required().String()

	// stop-effect command
	stopEffectCmd = app.Command("stop-effect", "Stop the current sound effect")

	// subscribe command
	subscribeCmd = app.Command("subscribe", "Subscribe to playback events")
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

	switch command {
	case gestureCmd.FullCommand():
		gesture(ctx, client)
	case effectCmd.FullCommand():
		playEffect(ctx, client, *effectTrack)
	case stopEffectCmd.FullCommand():
		stopEffect(ctx, client)
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
	}
}

func gesture(ctx context.Context, client *apiconnect.PlaybackServiceClient) {
	resp, err := client.NotifyUserGesture(ctx, connect.NewRequest(&apiconnect.Empty{}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.Msg.Playing {
		fmt.Printf("Audio unlocked, now playing: %s\n", resp.Msg.Track)
	} else {
		fmt.Println("Audio unlocked")
	}
}

func playEffect(ctx context.Context, client *apiconnect.PlaybackServiceClient, name string) {
	resp, err := client.PlayEffect(ctx, connect.NewRequest(&apiconnect.EffectRequest{Track: name}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case resp.Msg.Effect != "":
		fmt.Printf("Playing effect: %s\n", resp.Msg.Effect)
	case resp.Msg.Muted:
		fmt.Println("Muted, effect skipped")
	default:
		fmt.Println("Effect could not be started")
	}
}

func stopEffect(ctx context.Context, client *apiconnect.PlaybackServiceClient) {
	if _, err := client.StopEffect(ctx, connect.NewRequest(&apiconnect.Empty{})); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Effect stopped")
}

func subscribe(ctx context.Context, client *apiconnect.PlaybackServiceClient) {
	stream, err := client.Subscribe(ctx, connect.NewRequest(&apiconnect.Empty{}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Subscribed to playback events. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	for stream.Receive() {
		printNotification(stream.Msg())
	}

	if err := stream.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printNotification(n *notification.Notification) {
	fmt.Printf("[%d] %s %s", n.SequenceNo, n.Time.Format("15:04:05.000"), formatType(n.Type))
	if n.Track != "" {
		fmt.Printf(" track=%s", n.Track)
	}
	if n.Reason != "" {
		fmt.Printf(" reason=%s", n.Reason)
	}
	if n.SessionID != "" {
		fmt.Printf(" session=%s", n.SessionID)
	}
	fmt.Printf(" (%s)\n", n.State)
}

func formatType(t string) string {
	switch t {
	case apiconnect.NotificationTypeInitialState:
		return "=== INITIAL STATE ==="
	case "track_started", "track_resumed":
		return "▶️  " + t
	case "track_paused":
		return "⏸  " + t
	case "track_stopped":
		return "⏹  " + t
	case "track_deferred", "start_rejected":
		return "⏳ " + t
	case "fade_started", "fade_completed":
		return "🔀 " + t
	case "effect_started":
		return "🔔 " + t
	case "gesture_observed":
		return "👆 " + t
	default:
		return t
	}
}
