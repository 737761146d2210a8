package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/crtc-go/crtc"
	"github.com/crtc-go/crtc/internal/logger"
	"github.com/spf13/cobra"
)

var chatListenAddr string

var chatCmd = &cobra.Command{
	Use:   "chat [join-url]",
	Short: "chat with a peer",
	Long:  `chat with a peer over a data channel, hosts a session when no join link is given`,
	Args:  cobra.MaximumNArgs(1),
	Run:   runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatListenAddr, "listen", ":0", "signaling listen address when hosting")
}

func runChat(cmd *cobra.Command, args []string) {
	log := logger.NewLogger()
	s, err := newSession(log)
	if err != nil {
		log.Fatal(err)
		return
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var ch *crtc.DataChannel
	if len(args) == 0 {
		ch, err = s.pc.CreateDataChannel("chat", nil)
		if err != nil {
			log.Fatal(err)
			return
		}
		wireChat(ch)
		if err := s.host(ctx, chatListenAddr); err != nil {
			log.Fatal(err)
			return
		}
	} else {
		if err := s.join(ctx, args[0]); err != nil {
			log.Fatal(err)
			return
		}
		ch, err = s.waitForChannel(ctx)
		if err != nil {
			log.Fatal(err)
			return
		}
		wireChat(ch)
	}

	if err := waitForOpen(ctx, ch); err != nil {
		log.Fatal(err)
		return
	}
	fmt.Println("connected, type a message and press enter")

	lines := bufio.NewScanner(os.Stdin)
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		if err := ch.SendText(text); err != nil {
			log.Errorf("failed to send: %v", err)
			return
		}
	}
}

func wireChat(ch *crtc.DataChannel) {
	ch.OnMessage(func(payload *crtc.ArrayBuffer, binary bool) {
		if binary {
			return
		}
		fmt.Printf("peer: %s\n", payload.String())
	})
	ch.OnClose(func() {
		fmt.Println("peer closed the channel")
	})
	ch.OnError(func(e *crtc.Error) {
		fmt.Printf("channel error: %s\n", e)
	})
}
