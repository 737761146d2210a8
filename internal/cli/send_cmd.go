package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/crtc-go/crtc"
	"github.com/crtc-go/crtc/internal/logger"
	"github.com/crtc-go/crtc/internal/transfer"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var sendListenAddr string

var sendCmd = &cobra.Command{
	Use:   "send file-path",
	Short: "send a file",
	Long:  `host a session and stream a file to the peer that joins`,
	Args:  cobra.ExactArgs(1),
	Run:   runSend,
}

var receiveCmd = &cobra.Command{
	Use:   "receive join-url [output-dir]",
	Short: "receive a file",
	Long:  `join a session and receive the file the host is offering`,
	Args:  cobra.RangeArgs(1, 2),
	Run:   runReceive,
}

func init() {
	sendCmd.Flags().StringVar(&sendListenAddr, "listen", ":0", "signaling listen address")
}

func runSend(cmd *cobra.Command, args []string) {
	path := args[0]
	log := logger.NewLogger()

	info, err := os.Stat(path)
	if err != nil {
		log.Fatal(err)
		return
	}

	s, err := newSession(log)
	if err != nil {
		log.Fatal(err)
		return
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ch, err := s.pc.CreateDataChannel("transfer", nil)
	if err != nil {
		log.Fatal(err)
		return
	}

	// The receiver confirms the transfer with a done frame.
	result := make(chan transfer.Done, 1)
	ch.OnMessage(func(payload *crtc.ArrayBuffer, binary bool) {
		typ, body, err := transfer.DecodeFrame(payload.Data())
		if err != nil || typ != transfer.FrameDone {
			return
		}
		done, err := transfer.DecodeDone(body)
		if err != nil {
			return
		}
		select {
		case result <- done:
		default:
		}
	})

	if err := s.host(ctx, sendListenAddr); err != nil {
		log.Fatal(err)
		return
	}
	if err := waitForOpen(ctx, ch); err != nil {
		log.Fatal(err)
		return
	}

	bar := progressbar.DefaultBytes(info.Size(), "sending")
	if _, err := transfer.Send(ctx, ch, path, func(sent, total int64) {
		_ = bar.Set64(sent)
	}); err != nil {
		log.Fatal(err)
		return
	}

	select {
	case done := <-result:
		if !done.OK {
			log.Fatalf("transfer failed: %s", done.Reason)
			return
		}
		log.Info("transfer complete")
	case <-ctx.Done():
		log.Fatal(ctx.Err())
	}
}

func runReceive(cmd *cobra.Command, args []string) {
	url := args[0]
	dir := "."
	if len(args) == 2 {
		dir = args[1]
	}
	log := logger.NewLogger()

	s, err := newSession(log)
	if err != nil {
		log.Fatal(err)
		return
	}
	defer s.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := s.join(ctx, url); err != nil {
		log.Fatal(err)
		return
	}
	ch, err := s.waitForChannel(ctx)
	if err != nil {
		log.Fatal(err)
		return
	}

	recv := transfer.NewReceiver(dir)

	// OnProgress runs on the dispatch loop, so the bar needs no lock.
	var bar *progressbar.ProgressBar
	recv.OnProgress = func(received, total int64) {
		if bar == nil {
			bar = progressbar.DefaultBytes(total, "receiving")
		}
		_ = bar.Set64(received)
	}

	result := make(chan transfer.Done, 1)
	ch.OnMessage(func(payload *crtc.ArrayBuffer, binary bool) {
		done, err := recv.HandleFrame(payload.Data())
		if err != nil {
			log.Errorf("dropping bad frame: %v", err)
			return
		}
		if done == nil {
			return
		}
		if frame, err := transfer.EncodeDone(*done); err == nil {
			_ = ch.Send(crtc.NewArrayBufferFromBytes(frame))
		}
		select {
		case result <- *done:
		default:
		}
	})

	if err := waitForOpen(ctx, ch); err != nil {
		log.Fatal(err)
		return
	}

	select {
	case done := <-result:
		_ = recv.Close()
		if !done.OK {
			log.Fatalf("transfer failed: %s", done.Reason)
			return
		}
		log.Infof("received %s", recv.Manifest().Name)
	case <-ctx.Done():
		_ = recv.Close()
		log.Fatal(ctx.Err())
	}
}
