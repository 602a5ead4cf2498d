package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/GGBond-gogo/mrtoast/internal/cli"
	"github.com/GGBond-gogo/mrtoast/internal/game"
)

const commandTimeout = 10 * time.Second

// Discord announces table life to one channel and answers !toast
// lookups from any channel the bot can read.
type Discord struct {
	log     *slog.Logger
	session *discordgo.Session
	channel string
	api     *cli.Client
}

func NewDiscord(token, channelID string, api *cli.Client, logger *slog.Logger) (*Discord, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	d := &Discord{
		log:     logger.With("component", "discord"),
		session: session,
		channel: channelID,
		api:     api,
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(d.onMessage)
	return d, nil
}

func (d *Discord) Open() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.log.Info("discord connected", "channel", d.channel)
	return nil
}

func (d *Discord) Close() error {
	return d.session.Close()
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Wants(string) bool { return true }

func (d *Discord) Notify(_ context.Context, text string) error {
	_, err := d.session.ChannelMessageSend(d.channel, text)
	return err
}

func (d *Discord) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	fields := strings.Fields(m.Content)
	if len(fields) == 0 || fields[0] != "!toast" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	reply := d.command(ctx, fields[1:])
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		d.log.Warn("command reply failed", "error", err)
	}
}

func (d *Discord) command(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Try `!toast games` or `!toast state <code>`."
	}
	switch args[0] {
	case "games":
		sums, err := d.api.Games(ctx)
		if err != nil {
			d.log.Warn("lobby lookup failed", "error", err)
			return "The lobby is not answering right now."
		}
		if len(sums) == 0 {
			return "No tables open right now."
		}
		var b strings.Builder
		for _, sum := range sums {
			fmt.Fprintf(&b, "`%s` — %s, round %d, %d/%d seats\n", sum.GameID, sum.Phase, sum.Round, sum.Players, sum.MaxPlayers)
		}
		return strings.TrimRight(b.String(), "\n")
	case "state":
		if len(args) < 2 {
			return "Usage: `!toast state <code>`."
		}
		code := game.NormalizeGameID(args[1])
		snap, err := d.api.State(ctx, code, "")
		if cli.IsNotFound(err) {
			return fmt.Sprintf("No table with code `%s`.", code)
		}
		if err != nil {
			d.log.Warn("state lookup failed", "game_id", code, "error", err)
			return "The lobby is not answering right now."
		}
		alive := 0
		for _, p := range snap.Players {
			if p.IsAlive {
				alive++
			}
		}
		return fmt.Sprintf("Table `%s`: %s, round %d, %d players alive, market %s.",
			code, snap.Phase, snap.Round, alive, snap.Market.Trend)
	default:
		return "Try `!toast games` or `!toast state <code>`."
	}
}
