package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gantim/nvcloud-api-and-bot/pkg/database"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
	"github.com/gantim/nvcloud-api-and-bot/pkg/services"
)

// Sender delivers outgoing messages to the chat platform.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Dispatcher routes decoded chat events to container operations. Every chat
// identity gets a ChatUser record on first contact; commands that touch
// containers require the chat to be linked to an account first.
type Dispatcher struct {
	uow        *database.UnitOfWork
	containers *services.ContainerService
	sender     Sender
	logger     *slog.Logger
}

func NewDispatcher(uow *database.UnitOfWork, containers *services.ContainerService, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		uow:        uow,
		containers: containers,
		sender:     sender,
		logger:     logger,
	}
}

// HandleEvent processes one decoded event. Unknown events and events without
// a chat reference are dropped with a log line.
func (d *Dispatcher) HandleEvent(ctx context.Context, event Event) error {
	if event.Kind == EventUnknown || event.Chat == nil {
		d.logger.Debug("ignoring update without chat reference")
		return nil
	}

	chatUser, err := d.resolveChatUser(ctx, *event.Chat)
	if err != nil {
		return err
	}
	return d.dispatch(ctx, chatUser, strings.TrimSpace(event.Text))
}

// resolveChatUser loads the record for a chat identity, creating one on
// first contact and refreshing the stored username when it changed.
func (d *Dispatcher) resolveChatUser(ctx context.Context, chat Chat) (*models.ChatUser, error) {
	var chatUser *models.ChatUser
	err := d.uow.Do(ctx, func(scope *database.Scope) error {
		var err error
		chatUser, err = scope.ChatUsers.GetByChatID(ctx, chat.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			chatUser = &models.ChatUser{
				ChatID:   chat.ID,
				Username: chat.Username,
				FullName: chat.FullName,
			}
			return scope.ChatUsers.Create(ctx, chatUser)
		}
		if err != nil {
			return err
		}
		if chatUser.Username != chat.Username || chatUser.FullName != chat.FullName {
			chatUser.Username = chat.Username
			chatUser.FullName = chat.FullName
			return scope.ChatUsers.Update(ctx, chatUser)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chatUser, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, chatUser *models.ChatUser, text string) error {
	command, args, _ := strings.Cut(text, " ")
	args = strings.TrimSpace(args)

	switch command {
	case "/start":
		return d.handleStart(ctx, chatUser, args)
	case "/containers":
		return d.handleContainers(ctx, chatUser)
	case "/status":
		return d.handleStatus(ctx, chatUser, args)
	case "/on":
		return d.handleLifecycle(ctx, chatUser, args, "started", d.containers.StartContainer)
	case "/off":
		return d.handleLifecycle(ctx, chatUser, args, "stopped", d.containers.StopContainer)
	case "/reboot":
		return d.handleLifecycle(ctx, chatUser, args, "restarted", d.containers.RestartContainer)
	case "/post":
		return d.handleBroadcast(ctx, chatUser, args)
	default:
		return d.reply(ctx, chatUser,
			"Commands:\n/start <link-code>\n/containers\n/status <id>\n/on <id>\n/off <id>\n/reboot <id>")
	}
}

// handleStart links the chat to the account that issued the code. One chat
// binds to at most one account and vice versa; the unique user column in the
// chat user table rejects a second chat claiming the same account.
func (d *Dispatcher) handleStart(ctx context.Context, chatUser *models.ChatUser, args string) error {
	if args == "" {
		if chatUser.UserID != nil {
			return d.reply(ctx, chatUser, "Your account is already linked.")
		}
		return d.reply(ctx, chatUser, "Send /start <link-code> to link your account. Request a code from your profile page.")
	}

	code, err := uuid.Parse(args)
	if err != nil {
		return d.reply(ctx, chatUser, "That does not look like a link code.")
	}

	err = d.uow.Do(ctx, func(scope *database.Scope) error {
		user, err := scope.Users.GetByLinkCode(ctx, code)
		if err != nil {
			return err
		}
		chatUser.UserID = &user.ID
		chatUser.IsAdmin = user.IsAdmin
		if err := scope.ChatUsers.Update(ctx, chatUser); err != nil {
			return err
		}
		// Codes are single use.
		user.LinkCode = nil
		return scope.Users.Update(ctx, user)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.reply(ctx, chatUser, "Unknown or expired link code.")
	}
	if err != nil {
		// Unique index violation when the account is already bound to
		// another chat.
		d.logger.Warn("account linking failed", "chat", chatUser.ChatID, "error", err)
		return d.reply(ctx, chatUser, "This account is already linked to another chat.")
	}

	d.logger.Info("chat linked to account", "chat", chatUser.ChatID, "user", *chatUser.UserID)
	return d.reply(ctx, chatUser, "Account linked.")
}

// account resolves the linked User behind a chat, replying with a hint when
// the chat is not linked yet.
func (d *Dispatcher) account(ctx context.Context, chatUser *models.ChatUser) (*models.User, error) {
	if chatUser.UserID == nil {
		return nil, d.reply(ctx, chatUser, "Link your account first: /start <link-code>")
	}
	var user *models.User
	err := d.uow.Do(ctx, func(scope *database.Scope) error {
		var err error
		user, err = scope.Users.GetByID(ctx, *chatUser.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (d *Dispatcher) handleContainers(ctx context.Context, chatUser *models.ChatUser) error {
	user, err := d.account(ctx, chatUser)
	if err != nil || user == nil {
		return err
	}
	infos, err := d.containers.Containers(ctx, user)
	if err != nil {
		return d.replyError(ctx, chatUser, err)
	}
	if len(infos) == 0 {
		return d.reply(ctx, chatUser, "You have no containers.")
	}
	var b strings.Builder
	b.WriteString("Your containers:\n")
	for _, info := range infos {
		fmt.Fprintf(&b, "%d  %s  [%s]\n", info.ID, info.Name, info.Status)
	}
	return d.reply(ctx, chatUser, b.String())
}

func (d *Dispatcher) handleStatus(ctx context.Context, chatUser *models.ChatUser, args string) error {
	user, err := d.account(ctx, chatUser)
	if err != nil || user == nil {
		return err
	}
	vmid, ok := parseVMID(args)
	if !ok {
		return d.reply(ctx, chatUser, "Usage: /status <id>")
	}
	telemetry, err := d.containers.Telemetry(ctx, vmid, user)
	if err != nil {
		return d.replyError(ctx, chatUser, err)
	}
	text := fmt.Sprintf(
		"%s [%s]\nCPU: %d cores, %.0f%% free\nRAM: %d/%d MiB free\nDisk: %d/%d MiB free\nNet: ↓%d KiB/s ↑%d KiB/s",
		telemetry.Container.Name, telemetry.Container.Status,
		telemetry.CPU.CPUCores, telemetry.CPU.FreeCPU*100,
		telemetry.RAM.FreeRAMMiB, telemetry.RAM.RAMMiB,
		telemetry.ROM.FreeROMMiB, telemetry.ROM.ROMMiB,
		telemetry.Network.IncomingCurrentKiB, telemetry.Network.OutgoingCurrentKiB,
	)
	return d.reply(ctx, chatUser, text)
}

func (d *Dispatcher) handleLifecycle(ctx context.Context, chatUser *models.ChatUser, args, done string, op func(ctx context.Context, vmid int, caller *models.User) error) error {
	user, err := d.account(ctx, chatUser)
	if err != nil || user == nil {
		return err
	}
	vmid, ok := parseVMID(args)
	if !ok {
		return d.reply(ctx, chatUser, "Usage: the command takes a container id.")
	}
	if err := op(ctx, vmid, user); err != nil {
		return d.replyError(ctx, chatUser, err)
	}
	return d.reply(ctx, chatUser, fmt.Sprintf("Container %d %s.", vmid, done))
}

// handleBroadcast sends a text to every known chat. Administrators only.
func (d *Dispatcher) handleBroadcast(ctx context.Context, chatUser *models.ChatUser, text string) error {
	if !chatUser.IsAdmin {
		return d.reply(ctx, chatUser, "You are not allowed to do that.")
	}
	if text == "" {
		return d.reply(ctx, chatUser, "Usage: /post <text>")
	}

	var recipients []models.ChatUser
	err := d.uow.Do(ctx, func(scope *database.Scope) error {
		var err error
		recipients, err = scope.ChatUsers.List(ctx, nil, 0, 0)
		return err
	})
	if err != nil {
		return err
	}

	sent := 0
	for _, recipient := range recipients {
		if recipient.ChatID == chatUser.ChatID {
			continue
		}
		if err := d.sender.SendMessage(ctx, recipient.ChatID, text); err != nil {
			d.logger.Warn("broadcast delivery failed", "chat", recipient.ChatID, "error", err)
			continue
		}
		sent++
	}
	return d.reply(ctx, chatUser, fmt.Sprintf("Delivered to %d chats.", sent))
}

func (d *Dispatcher) reply(ctx context.Context, chatUser *models.ChatUser, text string) error {
	return d.sender.SendMessage(ctx, chatUser.ChatID, text)
}

// replyError turns service errors into chat-appropriate text instead of
// leaking internals.
func (d *Dispatcher) replyError(ctx context.Context, chatUser *models.ChatUser, err error) error {
	switch {
	case errors.Is(err, services.ErrContainerNotFound):
		return d.reply(ctx, chatUser, "No such container.")
	case errors.Is(err, services.ErrNoPermissions):
		return d.reply(ctx, chatUser, "That container is not yours.")
	default:
		d.logger.Error("chat command failed", "chat", chatUser.ChatID, "error", err)
		return d.reply(ctx, chatUser, "Something went wrong, try again later.")
	}
}

func parseVMID(s string) (int, bool) {
	vmid, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return vmid, true
}
