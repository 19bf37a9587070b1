// Package main provides the Tally command line client.
//
// The client keeps a local session of joined rooms, so day-to-day
// commands work against the "current" room without repeating names
// and keys.
//
// Usage:
//
//	tally register <email> <display-name>
//	tally login <email>
//	tally create <room> <secret-key>
//	tally join <room> <secret-key>
//	tally join --invite <link-or-token>
//	tally rooms
//	tally use <room>
//	tally leave <room>
//	tally add <option> [count]
//	tally remove <option> [count]
//	tally scores
//	tally invite [--expires 72h] [--max-uses 5]
package main

import (
	"context"
	"encoding/json/v2"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/tallyapp/tally-server/internal/client"
	"github.com/tallyapp/tally-server/internal/domain"
	domainerrors "github.com/tallyapp/tally-server/internal/errors"
	"github.com/tallyapp/tally-server/internal/session"
)

// credentials is the locally persisted token pair.
type credentials struct {
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// app bundles everything a command needs.
type app struct {
	api      *client.Client
	sessions *session.Store
	dataDir  string
	creds    *credentials
}

func main() {
	serverURL := flag.String("server", envOr("TALLY_SERVER", "http://localhost:8080"), "Tally server URL")
	dataDir := flag.String("data", envOr("TALLY_DATA", ""), "Local data directory (default: ~/.tally)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	a, err := newApp(*serverURL, *dataDir)
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "register":
		err = a.cmdRegister(ctx, rest)
	case "login":
		err = a.cmdLogin(ctx, rest)
	case "logout":
		err = a.cmdLogout(ctx)
	case "create":
		err = a.cmdCreate(ctx, rest)
	case "join":
		err = a.cmdJoin(ctx, rest)
	case "rooms":
		err = a.cmdRooms(ctx)
	case "use":
		err = a.cmdUse(rest)
	case "leave":
		err = a.cmdLeave(ctx, rest)
	case "add":
		err = a.cmdItem(ctx, rest, false)
	case "remove":
		err = a.cmdItem(ctx, rest, true)
	case "scores":
		err = a.cmdScores(ctx)
	case "invite":
		err = a.cmdInvite(ctx, rest)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fatal(err)
	}
}

func newApp(serverURL, dataDir string) (*app, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".tally")
	}

	storage, err := session.NewFileStorage(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open session storage: %w", err)
	}

	a := &app{
		api:      client.New(serverURL),
		sessions: session.NewStore(storage, nil),
		dataDir:  dataDir,
	}

	a.creds = a.loadCredentials()
	if a.creds != nil {
		a.api.SetAccessToken(a.creds.AccessToken)
	}
	return a, nil
}

// === Commands ===

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: tally register <email> <display-name>")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	res, err := a.api.Register(ctx, args[0], password, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	a.saveAuth(res)
	fmt.Printf("Registered and logged in as %s\n", res.User.Email)
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tally login <email>")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	res, err := a.api.Login(ctx, args[0], password)
	if err != nil {
		return err
	}
	a.saveAuth(res)
	fmt.Printf("Logged in as %s\n", res.User.Email)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if a.creds != nil && a.creds.RefreshToken != "" {
		// Best effort; local credentials are cleared regardless.
		_ = a.api.Logout(ctx, a.creds.RefreshToken)
	}
	if err := os.Remove(a.credentialsPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func (a *app) cmdCreate(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: tally create <room> <secret-key>")
	}
	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	// A fresh room starts with a standard drink catalog; the server
	// API allows arbitrary catalogs for other clients.
	options := []client.Option{
		{Name: "Beer", Emoji: "🍺", Points: 5},
		{Name: "Wine", Emoji: "🍷", Points: 8},
		{Name: "Shot", Emoji: "🥃", Points: 10},
		{Name: "Water", Emoji: "💧", Points: 1},
	}

	room, err := a.api.CreateRoom(ctx, args[0], args[1], "Drinks", options)
	if err != nil {
		return err
	}

	a.rememberRoom(room.Name, room.SecretKey)
	fmt.Printf("Created room %q and switched to it\n", room.Name)
	return nil
}

func (a *app) cmdJoin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	inviteLink := fs.String("invite", "", "Invitation link or token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	if *inviteLink != "" {
		token, err := client.ParseInviteToken(*inviteLink)
		if err != nil {
			return err
		}
		res, err := a.api.RedeemInvite(ctx, token)
		if err != nil {
			if errors.Is(err, domainerrors.ErrExpired) || errors.Is(err, domainerrors.ErrUsageLimit) {
				return fmt.Errorf("invitation no longer usable: %w", err)
			}
			return err
		}
		a.rememberRoom(res.Room.Name, res.Room.SecretKey)
		if res.AlreadyMember {
			fmt.Printf("Already a member of %q, switched to it\n", res.Room.Name)
		} else {
			fmt.Printf("Joined %q via invitation\n", res.Room.Name)
		}
		return nil
	}

	rest := fs.Args()
	if len(rest) != 2 {
		return errors.New("usage: tally join <room> <secret-key> | tally join --invite <link>")
	}

	room, err := a.api.JoinRoom(ctx, rest[0], rest[1])
	if err != nil {
		return err
	}
	a.rememberRoom(room.Name, room.SecretKey)
	fmt.Printf("Joined %q\n", room.Name)
	return nil
}

func (a *app) cmdRooms(ctx context.Context) error {
	sess := a.sessions.Load()
	if len(sess.JoinedRooms) == 0 {
		fmt.Println("No rooms joined on this device")
		return nil
	}
	for _, ref := range sess.JoinedRooms {
		marker := "  "
		if ref.Name == sess.CurrentRoomName {
			marker = "* "
		}
		visited := "never"
		if ref.LastVisited != nil {
			visited = ref.LastVisited.Format("2006-01-02 15:04")
		}
		fmt.Printf("%s%s (joined %s, last visited %s)\n",
			marker, ref.Name, ref.JoinedAt.Format("2006-01-02"), visited)
	}
	return nil
}

func (a *app) cmdUse(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tally use <room>")
	}
	if !a.sessions.SetCurrentRoom(args[0]) {
		return fmt.Errorf("room %q is not joined on this device", args[0])
	}
	fmt.Printf("Now using %q\n", args[0])
	return nil
}

func (a *app) cmdLeave(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tally leave <room>")
	}
	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	// Revoke server-side membership first, then drop the local ref.
	// A failed server call (e.g. room already deleted) still clears
	// the local state.
	if room, err := a.api.GetRoom(ctx, args[0]); err == nil {
		if err := a.api.LeaveRoom(ctx, room.ID); err != nil && !errors.Is(err, domainerrors.ErrNotFound) {
			return err
		}
	}

	a.sessions.RemoveRoom(args[0])
	fmt.Printf("Left %q\n", args[0])
	return nil
}

func (a *app) cmdItem(ctx context.Context, args []string, removed bool) error {
	verb := "add"
	if removed {
		verb = "remove"
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: tally %s <option> [count]", verb)
	}
	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	room, err := a.currentRoom(ctx)
	if err != nil {
		return err
	}

	count := 1
	if len(args) == 2 {
		count, err = strconv.Atoi(args[1])
		if err != nil || count < 1 {
			return fmt.Errorf("count must be a positive number, got %q", args[1])
		}
	}

	option, err := findOption(room, args[0])
	if err != nil {
		return err
	}

	past := "Added"
	if removed {
		past = "Removed"
		_, err = a.api.RemoveItem(ctx, room.ID, option.ID, count, "")
	} else {
		_, err = a.api.AddItem(ctx, room.ID, option.ID, count, "")
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s %d x %s %s in %q\n", past, count, option.Emoji, option.Name, room.Name)
	return nil
}

func (a *app) cmdScores(ctx context.Context) error {
	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	room, err := a.currentRoom(ctx)
	if err != nil {
		return err
	}

	board, err := a.api.GetScoreboard(ctx, room.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Scoreboard for %q\n\n", room.Name)
	if len(board.Scores) == 0 {
		fmt.Println("Nothing counted yet")
		return nil
	}
	for rank, score := range board.Scores {
		fmt.Printf("%d. %s: %d points\n", rank+1, score.Name, score.TotalPoints)
		for _, item := range score.Items {
			fmt.Printf("     %s %s x%d (%d)\n", item.Option.Emoji, item.Option.Name, item.Count, item.TotalPoints)
		}
	}
	return nil
}

func (a *app) cmdInvite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("invite", flag.ContinueOnError)
	expires := fs.String("expires", "", "Validity window, e.g. 72h (default: server setting)")
	maxUses := fs.Int("max-uses", 0, "Maximum redemptions (0 = unlimited)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	room, err := a.currentRoom(ctx)
	if err != nil {
		return err
	}

	var usesCap *int
	if *maxUses > 0 {
		usesCap = maxUses
	}

	invite, err := a.api.CreateInvite(ctx, room.ID, *expires, usesCap)
	if err != nil {
		return err
	}

	fmt.Printf("Invitation for %q:\n\n  %s\n\n", room.Name, invite.URL)
	fmt.Printf("Expires %s", invite.ExpiresAt.Format("2006-01-02 15:04"))
	if invite.MaxUses != nil {
		fmt.Printf(", up to %d uses", *invite.MaxUses)
	}
	fmt.Println()
	return nil
}

// === Helpers ===

// currentRoom resolves the session's current room against the server.
func (a *app) currentRoom(ctx context.Context) (*client.Room, error) {
	sess := a.sessions.Load()
	if sess.CurrentRoomName == "" {
		return nil, errors.New("no current room; join one or run `tally use <room>`")
	}
	room, err := a.api.GetRoom(ctx, sess.CurrentRoomName)
	if err != nil {
		return nil, fmt.Errorf("load current room %q: %w", sess.CurrentRoomName, err)
	}
	return room, nil
}

// rememberRoom records the join locally and makes it current.
func (a *app) rememberRoom(name, secretKey string) {
	a.sessions.AddRoom(domain.JoinedRoomRef{
		Name:      name,
		SecretKey: secretKey,
		JoinedAt:  time.Now(),
	})
	a.sessions.SetCurrentRoom(name)
}

// findOption matches an option by name, case-insensitively.
func findOption(room *client.Room, name string) (*client.Option, error) {
	for i := range room.Options {
		if strings.EqualFold(room.Options[i].Name, name) {
			return &room.Options[i], nil
		}
	}
	names := make([]string, 0, len(room.Options))
	for _, o := range room.Options {
		names = append(names, o.Name)
	}
	return nil, fmt.Errorf("unknown option %q, room has: %s", name, strings.Join(names, ", "))
}

// requireAuth ensures a valid access token, refreshing if the stored
// one has expired.
func (a *app) requireAuth(ctx context.Context) error {
	if a.creds == nil {
		return errors.New("not logged in; run `tally login <email>` first")
	}
	if time.Now().Before(a.creds.ExpiresAt.Add(-30 * time.Second)) {
		return nil
	}

	res, err := a.api.Refresh(ctx, a.creds.RefreshToken)
	if err != nil {
		return fmt.Errorf("session expired, log in again: %w", err)
	}
	a.saveAuth(res)
	return nil
}

func (a *app) saveAuth(res *client.AuthResult) {
	a.creds = &credentials{
		Email:        res.User.Email,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
	}
	a.api.SetAccessToken(res.AccessToken)

	data, err := json.Marshal(a.creds)
	if err != nil {
		return
	}
	_ = os.WriteFile(a.credentialsPath(), data, 0o600)
}

func (a *app) loadCredentials() *credentials {
	data, err := os.ReadFile(a.credentialsPath())
	if err != nil {
		return nil
	}
	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil
	}
	return &creds
}

func (a *app) credentialsPath() string {
	return filepath.Join(a.dataDir, "credentials.json")
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tally <command> [args]

Commands:
  register <email> <name>   Create an account
  login <email>             Log in
  logout                    Log out and clear local credentials
  create <room> <key>       Create a room
  join <room> <key>         Join a room by name and secret key
  join --invite <link>      Join via an invitation link
  rooms                     List rooms joined on this device
  use <room>                Switch the current room
  leave <room>              Leave a room
  add <option> [count]      Count something in the current room
  remove <option> [count]   Remove a previous count
  scores                    Show the current room's scoreboard
  invite [flags]            Create an invitation for the current room`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
