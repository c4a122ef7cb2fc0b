package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/ezex-io/actorfiber/channel"
	"github.com/ezex-io/actorfiber/envelope"
	"github.com/ezex-io/actorfiber/logger"
)

// powEntry is a demo worker entry: it answers method "pow" with the square
// of its integer argument, honours Shutdown, and implements the
// sleep-and-queue / sleep-and-drop contract for TimeDirective. None of this
// dispatch logic lives in the core packages — the core only carries the
// TimeDirective envelope, per its own handler contract.
func powEntry(ctx context.Context, inbox *channel.Channel) {
	receiveCtx := ctx

	var (
		cancelSleep context.CancelFunc
		queue       []envelope.Command
		sleeping    bool
		dropMode    bool
	)

	for {
		msg, err := inbox.Receive(receiveCtx)
		if err != nil {
			if sleeping && errors.Is(err, context.DeadlineExceeded) {
				sleeping = false
				cancelSleep()
				cancelSleep = nil
				receiveCtx = ctx

				for _, cmd := range queue {
					handlePow(ctx, cmd)
				}
				queue = nil

				continue
			}

			logger.Debug("pow worker exiting", "reason", err)

			return
		}

		switch msg.Kind {
		case envelope.KindShutdown:
			logger.Debug("pow worker received shutdown")

			return

		case envelope.KindTimeDirective:
			if cancelSleep != nil {
				cancelSleep()
			}

			sleeping = true
			dropMode = msg.TimeDirective.Drop
			receiveCtx, cancelSleep = context.WithTimeout(ctx, msg.TimeDirective.Duration)

		case envelope.KindCommand:
			if sleeping {
				if !dropMode {
					queue = append(queue, msg.Command)
				}

				continue
			}

			handlePow(ctx, msg.Command)

		default:
			logger.Debug("pow worker ignoring envelope", "kind", msg.Kind.String())
		}
	}
}

func handlePow(ctx context.Context, cmd envelope.Command) {
	if cmd.Method != "pow" {
		reply(ctx, cmd, envelope.StatusFailed, "unknown method: "+cmd.Method)

		return
	}

	n, err := strconv.Atoi(cmd.Args)
	if err != nil {
		reply(ctx, cmd, envelope.StatusFailed, "bad argument: "+err.Error())

		return
	}

	reply(ctx, cmd, envelope.StatusSuccess, strconv.Itoa(n*n))
}

func reply(ctx context.Context, cmd envelope.Command, status envelope.Status, data string) {
	if cmd.Sender == nil {
		return
	}

	if err := cmd.Sender.Send(ctx, envelope.NewResponse(status, cmd.ID, data)); err != nil {
		logger.Debug("pow worker reply failed", "id", cmd.ID, "error", err)
	}
}
