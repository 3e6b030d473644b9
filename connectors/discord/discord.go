package discord

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/pouncebot/pounce/bot"
	"github.com/pouncebot/pounce/bot/msg"
	"github.com/pouncebot/pounce/bot/user"
	"github.com/pouncebot/pounce/config"
)

type Discord struct {
	config *config.Config
	client *discordgo.Session

	event bot.Callback

	emojiCache map[string]string
	extract    textExtractor
}

func New(config *config.Config) *Discord {
	client, err := discordgo.New("Bot " + config.Get("discord.token", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to Discord")
	}
	d := &Discord{
		config: config,
		client: client,
	}
	if endpoint := config.Get("discord.ocr.url", ""); endpoint != "" {
		d.extract = extractorClient(endpoint)
	}
	return d
}

func (d *Discord) RegisterEvent(callback bot.Callback) {
	d.event = callback
}

func (d *Discord) Send(kind bot.Kind, args ...any) (string, error) {
	switch kind {
	case bot.Message:
		return d.sendMessage(args[0].(string), args[1].(string), false, args...)
	case bot.Action:
		return d.sendMessage(args[0].(string), args[1].(string), true, args...)
	case bot.Edit:
		st, err := d.client.ChannelMessageEdit(args[0].(string), args[2].(string), args[1].(string))
		if err != nil {
			return "", err
		}
		return st.ID, nil
	case bot.Reply:
		original, err := d.client.ChannelMessage(args[0].(string), args[1].(string))
		message := args[2].(string)
		if err != nil {
			log.Error().Err(err).Msg("could not get original")
		} else {
			message = fmt.Sprintf("> %s\n%s", original.Content, message)
		}
		return d.sendMessage(args[0].(string), message, false, args...)
	case bot.Reaction:
		m := args[2].(msg.Message)
		err := d.client.MessageReactionAdd(args[0].(string), m.ID, args[1].(string))
		return args[1].(string), err
	case bot.Delete:
		ch := args[0].(string)
		id := args[1].(string)
		err := d.client.ChannelMessageDelete(ch, id)
		if err != nil {
			log.Error().Err(err).Msg("cannot delete message")
		}
		return id, err
	case bot.Publish:
		st, err := d.client.ChannelMessageCrosspost(args[0].(string), args[1].(string))
		if err != nil {
			return "", err
		}
		return st.ID, nil
	case bot.DM:
		ch, err := d.client.UserChannelCreate(args[0].(string))
		if err != nil {
			return "", err
		}
		return d.sendMessage(ch.ID, args[1].(string), false, args...)
	default:
		log.Error().Msgf("discord.Send: unknown kind, %+v", kind)
		return "", errors.New("unknown message type")
	}
}

func (d *Discord) sendMessage(channel, message string, meMessage bool, args ...any) (string, error) {
	if meMessage && !strings.HasPrefix(message, "_") && !strings.HasSuffix(message, "_") {
		message = "_" + message + "_"
	}

	var embed *discordgo.MessageEmbed
	var opts *bot.MessageOptions

	for _, arg := range args {
		switch a := arg.(type) {
		case bot.ImageAttachment:
			embed = &discordgo.MessageEmbed{}
			embed.Description = a.AltTxt
			embed.Image = &discordgo.MessageEmbedImage{
				URL:    a.URL,
				Width:  a.Width,
				Height: a.Height,
			}
		case bot.MessageOptions:
			opts = &a
		}
	}

	data := &discordgo.MessageSend{
		Content: message,
		Embed:   embed,
	}

	if opts != nil {
		data.TTS = opts.TTS
		data.AllowedMentions = allowedMentions(opts.Mentions)
		if opts.ReplyTo != "" {
			data.Reference = &discordgo.MessageReference{
				MessageID: opts.ReplyTo,
				ChannelID: channel,
			}
		}
	}

	log.Debug().
		Interface("data", data).
		Msg("sending message")

	st, err := d.client.ChannelMessageSendComplex(channel, data)
	if err != nil {
		log.Error().Err(err).Msg("Error sending message")
		return "", err
	}

	if opts != nil && opts.DeleteAfter > 0 {
		id := st.ID
		time.AfterFunc(opts.DeleteAfter, func() {
			if err := d.client.ChannelMessageDelete(channel, id); err != nil {
				log.Error().Err(err).Msg("cannot delete expiring message")
			}
		})
	}

	return st.ID, nil
}

func allowedMentions(m bot.AllowedMentions) *discordgo.MessageAllowedMentions {
	parse := []discordgo.AllowedMentionType{}
	if m.Everyone {
		parse = append(parse, discordgo.AllowedMentionTypeEveryone)
	}
	if m.Users {
		parse = append(parse, discordgo.AllowedMentionTypeUsers)
	}
	if m.Roles {
		parse = append(parse, discordgo.AllowedMentionTypeRoles)
	}
	return &discordgo.MessageAllowedMentions{
		Parse:       parse,
		RepliedUser: m.RepliedUser,
	}
}

func (d *Discord) GetEmojiList(custom bool) map[string]string {
	if d.emojiCache != nil {
		return d.emojiCache
	}
	emojis := map[string]string{}
	// every guild the session has seen, then the configured guild's own
	// set on top
	if d.client.State != nil {
		for _, g := range d.client.State.Guilds {
			for _, e := range g.Emojis {
				emojis[e.ID] = e.Name
			}
		}
	}
	if guildID := d.config.Get("discord.guildid", ""); guildID != "" {
		es, err := d.client.GuildEmojis(guildID)
		if err != nil {
			log.Error().Err(err).Msg("could not retrieve emojis")
		} else {
			for _, e := range es {
				emojis[e.ID] = e.Name
			}
		}
	}
	if len(emojis) > 0 {
		d.emojiCache = emojis
	}
	return emojis
}

func (d *Discord) Emojy(name string) string {
	if id, ok := d.findEmojy(name); ok {
		return name + ":" + id
	}
	return name
}

func (d *Discord) findEmojy(name string) (string, bool) {
	for id, n := range d.GetEmojiList(true) {
		if n == name {
			return id, true
		}
	}
	return "", false
}

func (d *Discord) Who(id string) []string {
	ch, err := d.client.Channel(id)
	if err != nil {
		log.Error().Err(err).Msgf("Error getting users")
		return []string{}
	}
	users := []string{}
	for _, u := range ch.Recipients {
		users = append(users, u.Username)
	}
	return users
}

func (d *Discord) Profile(id string) (user.User, error) {
	u, err := d.client.User(id)
	if err != nil {
		log.Error().Err(err).Msg("Error getting user")
		return user.User{}, err
	}
	return *d.convertUser(u), nil
}

func (d *Discord) convertUser(u *discordgo.User) *user.User {
	return &user.User{
		ID:    u.ID,
		Name:  u.Username,
		Admin: false,
	}
}

func (d *Discord) GetChannelName(id string) string {
	ch, err := d.client.Channel(id)
	if err != nil {
		log.Error().Err(err).Msgf("could not retrieve channel")
		return id
	}
	return ch.Name
}

func (d *Discord) GetChannelID(name string) string {
	guildID := d.config.Get("discord.guildid", "")
	chs, err := d.client.GuildChannels(guildID)
	if err != nil {
		log.Error().Err(err).Msgf("could not retrieve channels")
		return name
	}
	for _, ch := range chs {
		if strings.EqualFold(ch.Name, name) {
			return ch.ID
		}
	}
	return name
}

func (d *Discord) GetRoles(guild string) ([]bot.Role, error) {
	roles, err := d.client.GuildRoles(guild)
	if err != nil {
		return nil, err
	}
	out := []bot.Role{}
	for _, r := range roles {
		out = append(out, bot.Role{
			ID:       r.ID,
			Name:     r.Name,
			Position: r.Position,
		})
	}
	return out, nil
}

func (d *Discord) MemberRoles(guild, userID string) ([]string, error) {
	m, err := d.client.GuildMember(guild, userID)
	if err != nil {
		return nil, err
	}
	return m.Roles, nil
}

func (d *Discord) SetRole(guild, userID, roleID string) error {
	return d.client.GuildMemberRoleAdd(guild, userID, roleID)
}

func (d *Discord) UnsetRole(guild, userID, roleID string) error {
	return d.client.GuildMemberRoleRemove(guild, userID, roleID)
}

func (d *Discord) Ban(guild, userID, reason string) error {
	return d.client.GuildBanCreateWithReason(guild, userID, reason, 0)
}

func (d *Discord) Kick(guild, userID, reason string) error {
	return d.client.GuildMemberDeleteWithReason(guild, userID, reason)
}

func (d *Discord) RenameChannel(channelID, name string) error {
	_, err := d.client.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name})
	return err
}

func (d *Discord) Perms(channel, userID string) (bot.Perms, error) {
	p, err := d.client.State.UserChannelPermissions(userID, channel)
	if err != nil {
		return bot.Perms{}, err
	}
	has := func(bit int64) bool { return p&bit != 0 }
	if has(discordgo.PermissionAdministrator) {
		return bot.Perms{
			Administrator:   true,
			ManageRoles:     true,
			ManageMessages:  true,
			ManageChannels:  true,
			ManageNicknames: true,
			BanMembers:      true,
			KickMembers:     true,
			AddReactions:    true,
		}, nil
	}
	return bot.Perms{
		ManageRoles:     has(discordgo.PermissionManageRoles),
		ManageMessages:  has(discordgo.PermissionManageMessages),
		ManageChannels:  has(discordgo.PermissionManageChannels),
		ManageNicknames: has(discordgo.PermissionManageNicknames),
		BanMembers:      has(discordgo.PermissionBanMembers),
		KickMembers:     has(discordgo.PermissionKickMembers),
		AddReactions:    has(discordgo.PermissionAddReactions),
	}, nil
}

func (d *Discord) Serve() error {
	log.Debug().Msg("starting discord serve function")

	d.client.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent)

	err := d.client.Open()
	if err != nil {
		log.Debug().Err(err).Msg("error opening client")
		return err
	}

	log.Debug().Msg("discord connection open")

	// the trigger parser checks the bot's own permissions by id
	if d.client.State.User != nil {
		if err := d.config.Set("bot.id", d.client.State.User.ID); err != nil {
			log.Error().Err(err).Msg("could not record bot id")
		}
	}

	d.client.AddHandler(d.messageCreate)
	d.client.AddHandler(d.messageUpdate)

	return nil
}

func (d *Discord) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	d.forward(s, m.Message, false)
}

func (d *Discord) messageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	// presence/embed updates come through with no author
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	d.forward(s, m.Message, true)
}

func (d *Discord) forward(s *discordgo.Session, m *discordgo.Message, isEdit bool) {
	ch, err := s.Channel(m.ChannelID)
	if err != nil {
		log.Error().Err(err).Msg("error getting channel info")
		return
	}

	isCmd, text := bot.IsCmd(d.config, m.Content)

	attachments := []msg.Attachment{}
	for _, a := range m.Attachments {
		att := msg.Attachment{
			Name: a.Filename,
			URL:  a.URL,
		}
		if d.extract != nil && strings.HasPrefix(a.ContentType, "image/") {
			if text, err := d.extract(a.URL); err != nil {
				log.Warn().Err(err).Str("attachment", a.URL).Msg("could not extract attachment text")
			} else {
				att.Text = text
			}
		}
		attachments = append(attachments, att)
	}

	message := msg.Message{
		ID:            m.ID,
		User:          d.convertUser(m.Author),
		Channel:       m.ChannelID,
		ChannelName:   ch.Name,
		Guild:         m.GuildID,
		Body:          text,
		Command:       isCmd,
		IsEdit:        isEdit,
		ChannelIsNSFW: ch.NSFW,
		Time:          m.Timestamp,
		Attachments:   attachments,
	}

	d.event(d, bot.Message, message)
}
