package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/engine"
	"github.com/hilthontt/tunesync/internal/infrastructure/configs"
	"github.com/hilthontt/tunesync/internal/infrastructure/logging"
	"github.com/hilthontt/tunesync/internal/player"
	"github.com/hilthontt/tunesync/internal/playlist"
	"github.com/hilthontt/tunesync/internal/roomapi"
	"github.com/hilthontt/tunesync/internal/transport"
)

func main() {
	var (
		roomID string
		user   string
		create bool
	)
	flag.StringVar(&roomID, "room", "", "room to join")
	flag.StringVar(&user, "user", "", "member name")
	flag.BoolVar(&create, "create", false, "create the room instead of joining")
	flag.Parse()

	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logging.FilePath,
		Encoding: cfg.Logging.Encoding,
		Level:    cfg.Logging.Level,
		Logger:   cfg.Logging.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A cached session lets a restarted client rejoin its room.
	resumed := false
	if roomID == "" || user == "" {
		if s, ok := engine.LoadSession(cfg.Client.SessionFile); ok {
			roomID, user = s.RoomID, s.User
			resumed = true
			fmt.Printf("resuming session as %s in room %s\n", user, roomID)
		}
	}
	if roomID == "" || user == "" {
		log.Fatal("both -room and -user are required")
	}
	if err := domain.ValidateName(roomID); err != nil {
		log.Fatalf("invalid room name: %v", err)
	}
	if err := domain.ValidateName(user); err != nil {
		log.Fatalf("invalid member name: %v", err)
	}

	api := roomapi.NewClient(cfg.Client.ServerURL)

	admin := false
	var createdAt time.Time
	if create {
		if meta, err := api.CreateRoom(ctx, roomID, user); err != nil {
			if !errors.Is(err, domain.ErrRoomAlreadyExists) {
				log.Fatalf("create room: %v", err)
			}
			fmt.Println("room already exists, joining instead")
		} else {
			admin = true
			createdAt = time.UnixMilli(meta.CreatedAt)
		}
	}

	// The room expires on every client's own clock, so each joiner needs
	// the creation instant.
	if createdAt.IsZero() {
		meta, err := api.GetRoom(ctx, roomID)
		if err != nil {
			log.Fatalf("fetch room: %v", err)
		}
		createdAt = time.UnixMilli(meta.CreatedAt)
	}

	// Joining under a roster name is treated as a reconnect by the
	// server, so a fresh join must pick a free one. A resumed session
	// is reclaiming its own name.
	if !admin && !resumed {
		free, err := api.IsNameAvailable(ctx, roomID, user)
		if err != nil {
			log.Fatalf("check name: %v", err)
		}
		if !free {
			log.Fatalf("the name %q is already taken in room %s", user, roomID)
		}
	}

	channel, err := transport.Dial(ctx, api.WebSocketURL(roomID, user), transport.Options{
		MaxAttempts:    cfg.Client.ReconnectAttempts,
		ReconnectDelay: cfg.Client.ReconnectDelay,
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("join room: %v", err)
	}
	defer channel.Close()

	if !admin {
		if members, err := api.GetMembers(ctx, roomID); err == nil {
			admin = members.Admin == user
		}
	}

	var backend player.Backend
	flavor := player.FlavorEmbed
	switch cfg.Client.PlayerBackend {
	case "direct":
		backend = player.NewDirectBackend()
		flavor = player.FlavorDirect
	default:
		backend = player.NewEmbedBackend()
	}

	adapter := player.NewAdapter(backend, flavor, logger)
	defer adapter.Close()

	eng := engine.NewEngine(channel, adapter, playlist.NewQueue(), api, engine.Options{
		RoomID:      roomID,
		User:        user,
		Admin:       admin,
		CreatedAt:   createdAt,
		SessionFile: cfg.Client.SessionFile,
		Logger:      logger,
	})

	go printNotifications(eng)
	go commandLoop(ctx, eng, api, roomID, user, stop)

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("engine stopped: %v", err)
	}

	// Best-effort clean departure so the room does not wait for the
	// server to notice the dead connection.
	leaveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := api.Leave(leaveCtx, roomID, user); err != nil {
		logger.Warnf("leave room: %v", err)
	}
}

func printNotifications(eng *engine.Engine) {
	for msg := range eng.Notifications() {
		fmt.Printf("* %s\n", msg)
	}
}

func commandLoop(ctx context.Context, eng *engine.Engine, api *roomapi.Client, roomID, user string, quit func()) {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "play":
			eng.Do(engine.Command{Kind: engine.CmdPlay})
		case "pause":
			eng.Do(engine.Command{Kind: engine.CmdPause})
		case "next":
			eng.Do(engine.Command{Kind: engine.CmdNext})
		case "prev":
			eng.Do(engine.Command{Kind: engine.CmdPrev})
		case "shuffle":
			eng.Do(engine.Command{Kind: engine.CmdToggleShuffle})
		case "repeat":
			eng.Do(engine.Command{Kind: engine.CmdToggleRepeat})
		case "seek":
			if len(fields) < 2 {
				fmt.Println("usage: seek <seconds>")
				continue
			}
			pos, err := strconv.ParseFloat(fields[1], 64)
			if err != nil || pos < 0 {
				fmt.Println("usage: seek <seconds>")
				continue
			}
			eng.Do(engine.Command{Kind: engine.CmdSeek, Position: pos})
		case "select":
			if len(fields) < 2 {
				fmt.Println("usage: select <songUrl>")
				continue
			}
			eng.Do(engine.Command{Kind: engine.CmdSelect, URL: fields[1]})
		case "ended":
			eng.Do(engine.Command{Kind: engine.CmdTrackEnded})
		case "add":
			if len(fields) < 3 {
				fmt.Println("usage: add <songName> <songUrl>")
				continue
			}
			track := domain.Track{Name: fields[1], URL: fields[2], Adder: user}
			if _, err := api.AddSong(ctx, roomID, track); err != nil {
				fmt.Printf("add failed: %v\n", err)
			}
		case "remove":
			if len(fields) < 2 {
				fmt.Println("usage: remove <songUrl>")
				continue
			}
			if err := api.RemoveSong(ctx, roomID, fields[1], user); err != nil {
				fmt.Printf("remove failed: %v\n", err)
			}
		case "upload":
			if len(fields) < 2 {
				fmt.Println("usage: upload <file>")
				continue
			}
			uploadSong(ctx, api, roomID, user, fields[1])
		case "kick":
			if len(fields) < 2 {
				fmt.Println("usage: kick <member>")
				continue
			}
			if err := api.RemoveMember(ctx, roomID, fields[1], user); err != nil {
				fmt.Printf("kick failed: %v\n", err)
			}
		case "songs":
			tracks, err := api.ListSongs(ctx, roomID)
			if err != nil {
				fmt.Printf("songs failed: %v\n", err)
				continue
			}
			for i, t := range tracks {
				fmt.Printf("%2d. %s (%s)\n", i+1, t.Name, t.URL)
			}
		case "members":
			members, err := api.GetMembers(ctx, roomID)
			if err != nil {
				fmt.Printf("members failed: %v\n", err)
				continue
			}
			for _, m := range members.Members {
				if m == members.Admin {
					fmt.Printf("- %s (admin)\n", m)
				} else {
					fmt.Printf("- %s\n", m)
				}
			}
		case "state":
			s := eng.State()
			fmt.Printf("track=%s position=%.1fs playing=%v shuffle=%v repeat=%v\n",
				s.Playback.CurrentTrack.Name, s.Playback.Position,
				s.Playback.IsPlaying, s.Playback.IsShuffle, s.Playback.IsRepeat)
		case "quit", "exit":
			quit()
			return
		default:
			fmt.Println("commands: play pause seek next prev select shuffle repeat add remove upload kick songs members state quit")
		}
	}
}

func uploadSong(ctx context.Context, api *roomapi.Client, roomID, user, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("upload failed: %v\n", err)
		return
	}
	defer f.Close()

	res, err := api.UploadSong(ctx, roomID, filepath.Base(path), user, f)
	if err != nil {
		fmt.Printf("upload failed: %v\n", err)
		return
	}
	fmt.Printf("uploaded %s -> %s\n", res.SongName, res.SongURL)
}
