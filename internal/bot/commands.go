package bot

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/clambin/zoned/internal/controller"
	"github.com/slack-go/slack"
)

func (b *Bot) onPause(ctx context.Context, args ...string) slack.Attachment {
	return b.controllerOp(ctx, "pause", b.manager.Pause, args)
}

func (b *Bot) onResume(ctx context.Context, args ...string) slack.Attachment {
	return b.controllerOp(ctx, "resume", b.manager.Resume, args)
}

func (b *Bot) onRecalculate(ctx context.Context, args ...string) slack.Attachment {
	return b.controllerOp(ctx, "recalculate", b.manager.Recalculate, args)
}

func (b *Bot) controllerOp(ctx context.Context, verb string, op func(context.Context, string) error, args []string) slack.Attachment {
	if len(args) != 1 {
		return slack.Attachment{Color: "bad", Text: "Usage: /" + verb + " <controller>"}
	}
	if err := op(ctx, args[0]); err != nil {
		return slack.Attachment{Color: "bad", Text: err.Error()}
	}
	return slack.Attachment{Color: "good", Text: verb + "d " + args[0]}
}

func (b *Bot) onStatus(_ context.Context, _ ...string) slack.Attachment {
	statuses := b.manager.Statuses()
	if len(statuses) == 0 {
		return slack.Attachment{Color: "bad", Text: "no status yet. please check back later"}
	}

	text := make([]string, 0, len(statuses))
	for _, status := range statuses {
		line := status.Name + ": " + status.Summary
		if status.Away {
			line += " (away)"
		}
		text = append(text, line)
	}
	slices.Sort(text)

	return slack.Attachment{Color: "good", Title: "status:", Text: strings.Join(text, "\n")}
}

func (b *Bot) onRooms(_ context.Context, args ...string) slack.Attachment {
	statuses, err := b.selectStatuses(args)
	if err != nil {
		return slack.Attachment{Color: "bad", Text: err.Error()}
	}

	text := make([]string, 0)
	for _, status := range statuses {
		for _, room := range status.Rooms {
			name := room.Name
			if len(statuses) > 1 {
				name = status.Name + "/" + room.Name
			}
			text = append(text, fmt.Sprintf("%s: %.1fºC (%s)", name, room.Temperature, roomState(room)))
		}
	}
	if len(text) == 0 {
		return slack.Attachment{Color: "bad", Text: "no rooms found"}
	}
	slices.Sort(text)

	return slack.Attachment{Color: "good", Title: "rooms:", Text: strings.Join(text, "\n")}
}

func roomState(room controller.RoomStatus) string {
	state := "vacant"
	if room.Occupied {
		state = "occupied"
	}
	switch {
	case !room.Included:
		state += ", excluded"
	case room.Critical:
		state += ", critical"
	case room.Satiated:
		state += ", on temperature"
	}
	return state
}

func (b *Bot) onVents(_ context.Context, args ...string) slack.Attachment {
	statuses, err := b.selectStatuses(args)
	if err != nil {
		return slack.Attachment{Color: "bad", Text: err.Error()}
	}

	text := make([]string, 0)
	for _, status := range statuses {
		for _, vent := range status.Vents {
			text = append(text, fmt.Sprintf("%s (%s): %s", vent.ID, vent.Room, ventState(vent)))
		}
	}
	if len(text) == 0 {
		return slack.Attachment{Color: "bad", Text: "no vents found"}
	}
	slices.Sort(text)

	return slack.Attachment{Color: "good", Title: "vents:", Text: strings.Join(text, "\n")}
}

func ventState(vent controller.VentStatus) string {
	state := "closed"
	if vent.Open {
		state = "open"
	}
	if vent.Unresponsive {
		return state + ", unresponsive"
	}
	if !vent.Confirmed {
		return state + ", unconfirmed"
	}
	return state
}

func (b *Bot) onSet(ctx context.Context, args ...string) slack.Attachment {
	if len(args) != 3 {
		return slack.Attachment{Color: "bad", Text: "Usage: /set <controller> <setting> <value>"}
	}
	if err := b.manager.Set(ctx, args[0], args[1], args[2]); err != nil {
		return slack.Attachment{Color: "bad", Text: err.Error()}
	}
	return slack.Attachment{Color: "good", Text: fmt.Sprintf("set %s on %s to %s", args[1], args[0], args[2])}
}

// selectStatuses resolves the optional controller argument: no argument means
// all controllers.
func (b *Bot) selectStatuses(args []string) ([]*controller.Status, error) {
	if len(args) == 0 {
		return b.manager.Statuses(), nil
	}
	status, err := b.manager.Status(args[0])
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, nil
	}
	return []*controller.Status{status}, nil
}
