// Command chatcli is a terminal client for one conversation: it prints live
// events and sends every line read from stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"PitchChat/models"
	"PitchChat/pkg/chatclient"
	"PitchChat/pkg/logger"
	"PitchChat/pkg/token"
	"PitchChat/pkg/wire"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "chatcli",
		Usage: "chat in a pitch conversation from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "backend base URL",
				EnvVars: []string{"PITCHCHAT_SERVER"},
			},
			&cli.StringFlag{
				Name:     "token",
				Usage:    "bearer credential issued by the account service",
				EnvVars:  []string{"PITCHCHAT_TOKEN"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "conversation",
				Aliases: []string{"c"},
				Usage:   "conversation id to open; lists conversations when empty",
			},
			&cli.StringFlag{
				Name:  "pitch",
				Usage: "start or reuse the conversation about this pitch",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("chatcli failed")
	}
}

func run(c *cli.Context) error {
	logger.Setup(c.String("log-level"), false)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tok := c.String("token")
	me, err := subject(tok)
	if err != nil {
		return err
	}
	base := strings.TrimRight(c.String("server"), "/")
	rest := chatclient.NewREST(base, tok)

	convID := c.String("conversation")
	if pitch := c.String("pitch"); pitch != "" && convID == "" {
		id, created, err := rest.Initiate(ctx, pitch, "Hi, I'd like to learn more about your pitch.")
		if err != nil {
			return fmt.Errorf("initiate: %w", err)
		}
		fmt.Printf("conversation %s (new: %t)\n", id, created)
		convID = id
	}
	if convID == "" {
		return listConversations(ctx, rest)
	}

	sock, err := chatclient.DialSocket(ctx, chatclient.SocketConfig{URL: socketURL(base), Token: tok})
	if err != nil {
		return err
	}
	sess := chatclient.NewSession(me, sock, rest)

	runErr := make(chan error, 1)
	go func() {
		runErr <- sock.Run(ctx, func(e wire.Envelope) {
			sess.Handle(ctx, e)
			render(sess, e)
		})
	}()

	if err := sess.Open(ctx, convID); err != nil {
		return err
	}
	for _, m := range sess.Store.Messages() {
		printMessage(me, m)
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			_ = sock.Close()
			return nil
		case err := <-runErr:
			return err
		case line, ok := <-lines:
			if !ok {
				_ = sock.Close()
				return nil
			}
			if err := command(ctx, sess, strings.TrimSpace(line)); err != nil {
				if errors.Is(err, errQuit) {
					_ = sock.Close()
					return nil
				}
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}
	}
}

var errQuit = errors.New("quit")

func command(ctx context.Context, sess *chatclient.Session, line string) error {
	switch line {
	case "":
		return nil
	case "/quit":
		return errQuit
	case "/typing":
		return sess.Typing(true)
	case "/read":
		return sess.MarkRead(ctx)
	case "/unread":
		n, err := sess.REST.UnreadCount(ctx)
		if err == nil {
			fmt.Printf("unread: %d\n", n)
		}
		return err
	}
	_ = sess.Typing(false)
	return sess.Send(ctx, line, models.MessageText)
}

func render(sess *chatclient.Session, e wire.Envelope) {
	me := sess.Store.Me()
	switch e.Event {
	case wire.NewMessage:
		msgs := sess.Store.Messages()
		if len(msgs) > 0 {
			printMessage(me, msgs[len(msgs)-1])
		}
		for _, n := range sess.Store.DrainNotifications() {
			fmt.Printf("* new message in %s: %s\n", n.ConversationID, n.Message.Content)
		}
	case wire.UserTyping:
		if users := sess.Store.TypingUsers(sess.Store.Active()); len(users) > 0 {
			fmt.Printf("* %s is typing\n", strings.Join(users, ", "))
		}
	case wire.MessagesRead:
		fmt.Println("* read")
	case wire.ConversationDeleted:
		if sess.Store.Active() == "" {
			fmt.Println("* conversation deleted")
		}
	case wire.UserOnline, wire.UserOffline:
		fmt.Printf("* %s\n", strings.ReplaceAll(e.Event, "_", " "))
	case wire.Error:
		fmt.Printf("! %s\n", sess.Store.LastError())
	}
}

func printMessage(me string, m models.Message) {
	who := "them"
	if m.SenderID == me {
		who = "me"
	} else if m.Sender != nil {
		who = m.Sender.Name
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), who, m.Content)
}

func listConversations(ctx context.Context, rest *chatclient.REST) error {
	list, err := rest.Conversations(ctx)
	if err != nil {
		return err
	}
	for _, conv := range list {
		title := conv.PitchID
		if conv.Pitch != nil {
			title = conv.Pitch.Title
		}
		last := ""
		if conv.LastMessage != nil {
			last = conv.LastMessage.Content
		}
		fmt.Printf("%s  %-30s  %s\n", conv.ID, title, last)
	}
	return nil
}

// subject reads the user id from the credential. The server verifies the
// signature; the client only needs to know who it is.
func subject(tok string) (string, error) {
	claims := &token.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

func socketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	}
	return base + "/ws"
}
