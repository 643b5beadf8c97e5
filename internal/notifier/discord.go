package notifier

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/goldenage/center-api/internal/models"
	"github.com/rs/zerolog"
)

// Notifier posts registration activity to the staff channel. Failures
// are logged by callers and never fail the originating request.
type Notifier interface {
	NotifyRegistration(user models.User, activity models.Activity, remaining int) error
	NotifyUnregistration(user models.User, activity models.Activity) error
}

type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	log       zerolog.Logger
}

func NewDiscordNotifier(session *discordgo.Session, channelID string, log zerolog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
		log:       log.With().Str("component", "notifier").Logger(),
	}
}

func (n *DiscordNotifier) NotifyRegistration(user models.User, activity models.Activity, remaining int) error {
	seats := "unlimited seats"
	if !activity.Unlimited() {
		seats = fmt.Sprintf("%d of %d seats left", remaining, activity.Capacity)
	}

	message := fmt.Sprintf("📋 **New registration**\n**Member:** %s %s\n**Activity:** %s (%s)\n**Availability:** %s",
		user.FirstName,
		user.LastName,
		activity.Name,
		activity.Date.Format("2006-01-02"),
		seats,
	)
	return n.send(message)
}

func (n *DiscordNotifier) NotifyUnregistration(user models.User, activity models.Activity) error {
	message := fmt.Sprintf("📋 **Registration cancelled**\n**Member:** %s %s\n**Activity:** %s (%s)",
		user.FirstName,
		user.LastName,
		activity.Name,
		activity.Date.Format("2006-01-02"),
	)
	return n.send(message)
}

func (n *DiscordNotifier) send(message string) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	if _, err := n.session.ChannelMessageSend(n.channelID, message); err != nil {
		n.log.Error().Err(err).Msg("failed to send discord message")
		return err
	}
	return nil
}
